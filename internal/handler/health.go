package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Health reports whether the service and its stores are reachable.  It is
// used by load balancers and monitoring systems.
type Health struct {
	Checks map[string]Check
}

type healthResp struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Health) Handle(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := healthResp{Status: "ok"}
	status := http.StatusOK
	if len(h.Checks) > 0 {
		resp.Checks = make(map[string]string, len(h.Checks))
	}
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(status, resp)
}
