// Package server exposes the agent's operational HTTP surface: health,
// Prometheus metrics, the last cycle and a live websocket feed of cycles.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/serpius-project/wedx-go/internal/metrics"
	"github.com/serpius-project/wedx-go/internal/rebalance"
)

// StatusProvider reports the most recent cycle. *rebalance.Agent
// implements it.
type StatusProvider interface {
	Last() (rebalance.CycleResult, bool)
}

func NewRouter(status StatusProvider, hub *Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		last, ok := status.Last()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cycle has run yet"})
			return
		}
		writeJSON(w, http.StatusOK, last)
	})
	if hub != nil {
		r.Get("/ws", hub.HandleWS)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves handler on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logrus.WithField("prefix", "server").Infof("listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
