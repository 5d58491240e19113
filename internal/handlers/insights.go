package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chatpulse-insights/internal/insights"
	"chatpulse-insights/pkg/logging/logging"
)

// InsightsService is the slice of the insights coordinator this handler
// needs. Satisfied by *insights.Service.
type InsightsService interface {
	Insights(ctx context.Context, req insights.Request) (insights.Result, error)
}

// InsightsHandler serves POST /api/insights.
type InsightsHandler struct {
	Service InsightsService
}

func NewInsightsHandler(service InsightsService) *InsightsHandler {
	return &InsightsHandler{Service: service}
}

type insightsRequest struct {
	PageID  string `json:"page_id"`
	Days    int    `json:"days"`
	Refresh bool   `json:"refresh"`
}

type insightsResponse struct {
	Success bool              `json:"success"`
	Data    *insights.Payload `json:"data,omitempty"`
	Status  string            `json:"status,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// GetInsights handles POST /api/insights.
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req insightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, insightsResponse{
			Success: false,
			Error:   "invalid JSON",
		})
		return
	}

	result, err := h.Service.Insights(ctx, insights.Request{
		PageID:  req.PageID,
		Days:    req.Days,
		Refresh: req.Refresh,
	})
	if err != nil {
		status := http.StatusInternalServerError
		var noToken *insights.NoTokenError
		if errors.Is(err, insights.ErrMissingPageID) || errors.As(err, &noToken) {
			status = http.StatusBadRequest
		}

		logger.Warn("insights request failed",
			zap.String("page_id", req.PageID),
			zap.Int("days", req.Days),
			zap.Int("status", status),
			zap.Duration("total_latency_ms", time.Since(start)),
			zap.Error(err),
		)
		writeJSON(w, status, insightsResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	logger.Info("insights request served",
		zap.String("page_id", req.PageID),
		zap.Int("days", req.Days),
		zap.String("status", result.Status),
		zap.Duration("total_latency_ms", time.Since(start)),
	)

	writeJSON(w, http.StatusOK, insightsResponse{
		Success: true,
		Data:    &result.Payload,
		Status:  result.Status,
	})
}

// writeJSON is a small helper to send JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
