package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"git.uuxo.net/uuxo/fileshare-server/internal/metrics"
)

// NewRouter wires the API routes, the websocket endpoint and the health
// check onto a mux router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(countRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", h.HandleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.withAuth(h.HandleLogout)).Methods(http.MethodPost)

	api.HandleFunc("/files", h.withAuth(h.HandleListFiles)).Methods(http.MethodGet)
	api.HandleFunc("/files", h.withAuth(h.HandleUpload)).Methods(http.MethodPost)
	api.HandleFunc("/files/{name}", h.withAuth(h.HandleDownload)).Methods(http.MethodGet)
	api.HandleFunc("/files/{name}", h.withAuth(h.HandleDelete)).Methods(http.MethodDelete)
	api.HandleFunc("/files/{name}/share", h.withAuth(h.HandleShare)).Methods(http.MethodPost)
	api.HandleFunc("/files/{name}/analyze", h.withAuth(h.HandleAnalyze)).Methods(http.MethodGet)

	api.HandleFunc("/shared", h.withAuth(h.HandleListShared)).Methods(http.MethodGet)
	api.HandleFunc("/shared/{name}", h.withAuth(h.HandleFetchShared)).Methods(http.MethodGet)

	api.HandleFunc("/compress", h.withAuth(h.HandleCompress)).Methods(http.MethodPost)
	api.HandleFunc("/history", h.withAuth(h.HandleHistory)).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.withAuth(h.HandleStats)).Methods(http.MethodGet)

	r.HandleFunc("/ws", h.Bus.HandleConnection)
	r.Handle("/health", HealthHandler()).Methods(http.MethodGet)

	return r
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if metrics.RequestsTotal != nil {
			metrics.RequestsTotal.WithLabelValues(r.Method, r.URL.Path).Inc()
		}
		next.ServeHTTP(w, r)
	})
}
