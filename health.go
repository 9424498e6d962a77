package cmsblog

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthResponse is the body of the probe endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealthz is the liveness probe; it never checks dependencies.
func handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReadyz reports whether the CMS and the journal database answer.
// Pages render "no content" during a CMS outage; this is where it shows.
func (a *App) handleReadyz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if err := a.Content.Ping(ctx); err != nil {
		checks["strapi"] = "error: " + err.Error()
		healthy = false
	} else {
		checks["strapi"] = "ok"
	}

	if err := a.Store.Ping(); err != nil {
		checks["sqlite"] = "error: " + err.Error()
		healthy = false
	} else {
		checks["sqlite"] = "ok"
	}

	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "error: " + err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Checks: checks})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}
