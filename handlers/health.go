package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/engboost/snaplang-api/utils"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Assets    string    `json:"assets,omitempty"`
}

// healthChecker is implemented by asset stores that can probe their backend.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Health reports whether the store answers a ping.
func (h *DBHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Timestamp: time.Now().UTC(), Database: "up"}
	status := http.StatusOK

	if err := h.ping(r.Context()); err != nil {
		h.Log.WithError(err).Error("health check failed")
		resp.Status = "unavailable"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}

	if hc, ok := h.Assets.(healthChecker); ok {
		resp.Assets = "up"
		if err := hc.HealthCheck(r.Context()); err != nil {
			h.Log.WithError(err).Warn("asset store health check failed")
			resp.Assets = "down"
		}
	}

	utils.WriteJSON(w, status, resp)
}

func (h *DBHandler) ping(ctx context.Context) error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
