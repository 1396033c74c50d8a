package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	Environment string            `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.deps.Checks))
	for name := range h.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Checks: map[string]string{}, Environment: h.cfg.Environment}
	status := http.StatusOK
	for _, name := range names {
		resp.Checks[name] = "ok"
		if err := h.deps.Checks[name](ctx); err != nil {
			resp.Checks[name] = "error"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			h.log.Error().Err(err).Str("check", name).Msg("health check failed")
		}
	}

	c.JSON(status, resp)
}
