package http_handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/baechuer/contacts-api/internal/logger"
	"github.com/baechuer/contacts-api/internal/transport/http/response"
)

const readyTimeout = 2 * time.Second

// Check is one readiness dependency (database, redis, broker).
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	checks []Check
}

func NewHealthHandler(checks ...Check) *HealthHandler {
	out := make([]Check, 0, len(checks))
	for _, c := range checks {
		if c.Ping != nil {
			out = append(out, c)
		}
	}
	return &HealthHandler{checks: out}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz. All checks run concurrently; any failure
// makes the instance unready.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.checks))
	)

	// Plain Group: one failing check must not cancel the others, so every
	// dependency gets reported.
	var g errgroup.Group
	for _, c := range h.checks {
		g.Go(func() error {
			err := c.Ping(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[c.Name] = "down"
				logger.WithCtx(r.Context()).Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
				return err
			}
			results[c.Name] = "up"
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		response.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"checks": results,
		})
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": results,
	})
}
