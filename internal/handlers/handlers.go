package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"git.uuxo.net/uuxo/fileshare-server/internal/auth"
	"git.uuxo.net/uuxo/fileshare-server/internal/history"
	"git.uuxo.net/uuxo/fileshare-server/internal/metrics"
	"git.uuxo.net/uuxo/fileshare-server/internal/multipart"
	"git.uuxo.net/uuxo/fileshare-server/internal/notify"
	"git.uuxo.net/uuxo/fileshare-server/internal/storage"
	"git.uuxo.net/uuxo/fileshare-server/internal/thumbs"
	"git.uuxo.net/uuxo/fileshare-server/internal/tools"
	"git.uuxo.net/uuxo/fileshare-server/internal/utils"
	"git.uuxo.net/uuxo/fileshare-server/internal/workers"
)

// Handler is the request dispatcher. History and Thumbs are optional;
// nil disables the corresponding feature.
type Handler struct {
	Sessions *auth.SessionStore
	Files    *storage.FileStore
	Bus      *notify.Bus
	Runner   *tools.Runner
	History  *history.Store
	Thumbs   *thumbs.Generator
	Pool     *workers.Pool

	// MaxUploadSize caps request body buffering during multipart decode.
	MaxUploadSize int64
}

// ownerHandler is a handler that runs with a resolved owner identity.
type ownerHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// withAuth resolves the bearer token before invoking the handler.
func (h *Handler) withAuth(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		ownerID, err := h.Sessions.Resolve(token)
		if err != nil {
			WriteJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, ownerID)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin authenticates credentials and mints a session token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	token, err := h.Sessions.Authenticate(req.Username, req.Password)
	if err != nil {
		WriteJSONError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	WriteJSONResponse(w, http.StatusOK, map[string]string{"token": token})
}

// HandleLogout revokes the caller's token.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request, ownerID string) {
	h.Sessions.Revoke(auth.TokenFromRequest(r))
	log.Infof("User %s logged out", ownerID)
	WriteJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleListFiles enumerates the owner's directory.
func (h *Handler) HandleListFiles(w http.ResponseWriter, r *http.Request, ownerID string) {
	files, err := h.Files.List(ownerID)
	if err != nil {
		log.Errorf("List failed for %s: %v", ownerID, err)
		WriteJSONError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"files": files})
}

// HandleUpload decodes the multipart body and stores the attached file.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request, ownerID string) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.MaxUploadSize))
	if err != nil {
		metrics.UploadErrorsTotal.Inc()
		WriteJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	parts, err := multipart.Decode(r.Header.Get("Content-Type"), body)
	if err != nil {
		metrics.UploadErrorsTotal.Inc()
		WriteJSONError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}

	filePart, ok := multipart.FilePart(parts)
	if !ok {
		metrics.UploadErrorsTotal.Inc()
		WriteJSONError(w, http.StatusBadRequest, "no file attached")
		return
	}

	uniqueName, err := h.Files.Save(ownerID, filePart.Filename, filePart.Content)
	if err != nil {
		metrics.UploadErrorsTotal.Inc()
		log.Errorf("Save failed for %s: %v", ownerID, err)
		WriteJSONError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	metrics.UploadsTotal.Inc()
	metrics.UploadSizeBytes.Observe(float64(len(filePart.Content)))
	metrics.UploadDuration.Observe(time.Since(start).Seconds())

	h.recordHistory(r, ownerID, history.OpUpload, uniqueName, int64(len(filePart.Content)))
	h.generateThumbnail(ownerID, uniqueName)

	h.Bus.Broadcast(notify.Event{
		"type":     notify.EventFileUploaded,
		"userId":   ownerID,
		"filename": uniqueName,
		"size":     len(filePart.Content),
	})

	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"uniqueName":   uniqueName,
		"originalName": filePart.Filename,
	})
}

// HandleDownload streams one of the owner's files.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request, ownerID string) {
	start := time.Now()
	name := mux.Vars(r)["name"]

	content, info, err := h.Files.Fetch(ownerID, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.DownloadErrorsTotal.Inc()
			WriteJSONError(w, http.StatusNotFound, "file not found")
			return
		}
		metrics.DownloadErrorsTotal.Inc()
		log.Errorf("Fetch failed for %s/%s: %v", ownerID, name, err)
		WriteJSONError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	metrics.DownloadsTotal.Inc()
	metrics.DownloadSizeBytes.Observe(float64(info.Size))
	metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	h.recordHistory(r, ownerID, history.OpDownload, info.Name, info.Size)

	w.Header().Set("Content-Type", utils.GetContentType(info.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// HandleDelete removes one of the owner's files.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request, ownerID string) {
	name := mux.Vars(r)["name"]

	if !h.Files.Delete(ownerID, name) {
		WriteJSONError(w, http.StatusNotFound, "file not found")
		return
	}

	metrics.DeletionsTotal.Inc()
	h.recordHistory(r, ownerID, history.OpDelete, name, 0)
	h.Bus.Broadcast(notify.Event{
		"type":     notify.EventFileDeleted,
		"userId":   ownerID,
		"filename": name,
	})

	WriteJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleShare copies one of the owner's files into the shared pool.
func (h *Handler) HandleShare(w http.ResponseWriter, r *http.Request, ownerID string) {
	name := mux.Vars(r)["name"]

	if !h.Files.Share(ownerID, name) {
		WriteJSONError(w, http.StatusNotFound, "file not found")
		return
	}

	metrics.SharesTotal.Inc()
	h.recordHistory(r, ownerID, history.OpShare, name, 0)
	h.Bus.Broadcast(notify.Event{
		"type":     notify.EventFileShared,
		"userId":   ownerID,
		"filename": name,
	})

	WriteJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleAnalyze runs the file type identification tool on one file.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request, ownerID string) {
	name := mux.Vars(r)["name"]

	path, err := h.Files.OwnerFilePath(ownerID, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteJSONError(w, http.StatusNotFound, "file not found")
			return
		}
		WriteJSONError(w, http.StatusInternalServerError, "failed to access file")
		return
	}

	result, err := h.Runner.Analyze(r.Context(), path)
	if err != nil {
		log.Errorf("Analyze failed for %s: %v", path, err)
		WriteJSONError(w, http.StatusInternalServerError, "file analysis failed")
		return
	}
	WriteJSONResponse(w, http.StatusOK, result)
}

// HandleListShared enumerates the shared pool.
func (h *Handler) HandleListShared(w http.ResponseWriter, r *http.Request, ownerID string) {
	shared, err := h.Files.ListShared()
	if err != nil {
		log.Errorf("ListShared failed: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "failed to list shared files")
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"files": shared})
}

// HandleFetchShared streams a shared file, resolving legacy unprefixed
// names.
func (h *Handler) HandleFetchShared(w http.ResponseWriter, r *http.Request, ownerID string) {
	name := mux.Vars(r)["name"]

	content, info, err := h.Files.FetchShared(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteJSONError(w, http.StatusNotFound, "shared file not found")
			return
		}
		log.Errorf("FetchShared failed for %s: %v", name, err)
		WriteJSONError(w, http.StatusInternalServerError, "failed to read shared file")
		return
	}

	metrics.DownloadsTotal.Inc()
	h.recordHistory(r, ownerID, history.OpDownload, info.Name, info.Size)

	w.Header().Set("Content-Type", utils.GetContentType(info.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// HandleCompress archives the owner's directory on the worker pool and
// waits for the typed result.
func (h *Handler) HandleCompress(w http.ResponseWriter, r *http.Request, ownerID string) {
	ctx := r.Context()
	results := make(chan tools.CompressResult, 1)

	submitted := h.Pool.Submit(workers.Task{Execute: func() error {
		result := <-h.Runner.Compress(ctx, h.Files.OwnerDir(ownerID))
		results <- result
		return result.Err
	}})
	if !submitted {
		WriteJSONError(w, http.StatusServiceUnavailable, "server busy")
		return
	}

	select {
	case result := <-results:
		if result.Err != nil {
			metrics.CompressionErrors.Inc()
			if errors.Is(result.Err, tools.ErrToolUnavailable) {
				WriteJSONError(w, http.StatusNotImplemented, "no compression tool available")
				return
			}
			log.Errorf("Compression failed for %s: %v", ownerID, result.Err)
			WriteJSONError(w, http.StatusInternalServerError, "compression failed")
			return
		}

		metrics.CompressionsTotal.Inc()
		h.Bus.Notify(ownerID, notify.Event{
			"type":     notify.EventCompressionCompleted,
			"filename": result.Filename,
		})
		WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"filename": result.Filename,
		})

	case <-ctx.Done():
		// The client went away; the archive job finishes on its own and
		// its eventual result is dropped.
	}
}

// HandleHistory returns the owner's recent transfers.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request, ownerID string) {
	if h.History == nil {
		WriteJSONError(w, http.StatusNotFound, "history disabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.History.RecentForOwner(r.Context(), ownerID, limit)
	if err != nil {
		log.Errorf("History query failed for %s: %v", ownerID, err)
		WriteJSONError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"history": records})
}

// HandleStats returns aggregate transfer statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request, ownerID string) {
	if h.History == nil {
		WriteJSONError(w, http.StatusNotFound, "history disabled")
		return
	}

	stats, err := h.History.GetStats(r.Context())
	if err != nil {
		log.Errorf("Stats query failed: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	WriteJSONResponse(w, http.StatusOK, stats)
}

// recordHistory writes one history row, logging rather than failing the
// request when the store misbehaves.
func (h *Handler) recordHistory(r *http.Request, ownerID, op, name string, size int64) {
	if h.History == nil {
		return
	}
	if err := h.History.RecordTransfer(r.Context(), ownerID, op, name, size); err != nil {
		log.Warnf("Failed to record history for %s: %v", ownerID, err)
	}
}

// generateThumbnail renders an image thumbnail in the background.
func (h *Handler) generateThumbnail(ownerID, storedName string) {
	if h.Thumbs == nil || !thumbs.IsImage(storedName) {
		return
	}
	dir := h.Files.OwnerDir(ownerID)
	h.Pool.Submit(workers.Task{Execute: func() error {
		return h.Thumbs.Generate(dir, storedName)
	}})
}
