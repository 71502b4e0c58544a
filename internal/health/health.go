// Package health serves the liveness endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Source reports the number of challenges currently stored.
type Source interface {
	ActiveChallenges() int
}

// Status is the /health response body.
type Status struct {
	Status           string `json:"status"`
	ActiveChallenges int    `json:"active_challenges"`
	Error            string `json:"error,omitempty"`
}

// NewRouter builds the health router. ping may be nil when no database is
// configured.
func NewRouter(src Source, ping func(context.Context) error) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		status := Status{Status: "ok", ActiveChallenges: src.ActiveChallenges()}
		code := http.StatusOK

		if ping != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				status.Status = "degraded"
				status.Error = err.Error()
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}).Methods(http.MethodGet)
	return r
}

// Serve runs an HTTP server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Health server shutdown failed")
		}
	}()

	log.Info().Str("addr", addr).Msg("Health endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
