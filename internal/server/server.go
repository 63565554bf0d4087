// Package server provides HTTP server setup and lifecycle management,
// including the optional standalone metrics listener.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"git.uuxo.net/uuxo/fileshare-server/internal/config"
	"git.uuxo.net/uuxo/fileshare-server/internal/metrics"
)

var log = logrus.New()

// SetLogger replaces the package-level logger.
func SetLogger(l *logrus.Logger) { log = l }

// New creates the API server from configuration.
func New(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:           cfg.Server.BindIP + ":" + cfg.Server.ListenAddress,
		Handler:        handler,
		ReadTimeout:    parseDuration(cfg.Timeouts.Read, 4800*time.Second),
		WriteTimeout:   parseDuration(cfg.Timeouts.Write, 4800*time.Second),
		IdleTimeout:    parseDuration(cfg.Timeouts.Idle, 65*time.Second),
		MaxHeaderBytes: 1 << 20,
	}
}

// parseDuration parses a duration string, falling back on empty or
// malformed input.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Warnf("Invalid duration %q, using %v", s, fallback)
		return fallback
	}
	return d
}

// Start runs the API server and blocks until shutdown.
func Start(srv *http.Server) error {
	log.Infof("Starting File Share Server on %s", srv.Addr)
	return srv.ListenAndServe()
}

// StartMetricsListener serves the Prometheus scrape endpoint on its own
// port when metrics are enabled. It also launches the periodic system
// gauge updater.
func StartMetricsListener(cfg *config.Config, interval time.Duration) {
	if !cfg.Server.MetricsEnabled {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			metrics.UpdateSystemMetrics()
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := cfg.Server.BindIP + ":" + cfg.Server.MetricsPort
		log.Infof("Metrics endpoint listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("Metrics listener failed: %v", err)
		}
	}()
}

// SetupGracefulShutdown drains the API server on SIGINT/SIGTERM and then
// runs cleanupFn, which tears down the notification bus, worker pool and
// history store.
func SetupGracefulShutdown(srv *http.Server, cancel context.CancelFunc, cleanupFn func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Infof("Received signal %v, initiating graceful shutdown...", sig)

		cancel()

		ctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("Server shutdown error: %v", err)
		} else {
			log.Info("Server shutdown completed")
		}

		if cleanupFn != nil {
			cleanupFn()
		}

		os.Exit(0)
	}()
}

// PrintStartupBanner prints the server startup banner.
func PrintStartupBanner(version string, listenAddr string) {
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║         File Share Server                    ║")
	fmt.Printf("║         Version: %-27s ║\n", version)
	fmt.Printf("║         Listen:  %-27s ║\n", listenAddr)
	fmt.Println("╚══════════════════════════════════════════════╝")
}
