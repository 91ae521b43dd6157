package handler

import (
	"context"
	"net/http"

	"github.com/mcoot/dicemeister/internal/api/request"
	"github.com/mcoot/dicemeister/internal/api/response"
	"github.com/mcoot/dicemeister/internal/api/sse"
	"github.com/mcoot/dicemeister/internal/model"
)

// StatusSource builds operator status snapshots
type StatusSource interface {
	Status(ctx context.Context) (*model.Status, error)
}

// LeaderboardSource supplies the ranking projection
type LeaderboardSource interface {
	Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error)
}

// StatusHandler serves the operator view
type StatusHandler struct {
	status      StatusSource
	leaderboard LeaderboardSource
	hub         *sse.Hub
	maxEntries  int
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(status StatusSource, leaderboard LeaderboardSource, hub *sse.Hub, maxEntries int) *StatusHandler {
	return &StatusHandler{
		status:      status,
		leaderboard: leaderboard,
		hub:         hub,
		maxEntries:  maxEntries,
	}
}

// Status handles GET /api/v1/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.status.Status(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.StatusFromModel(status))
}

// Leaderboard handles GET /api/v1/leaderboard
func (h *StatusHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := request.Limit(r, h.maxEntries, h.maxEntries)
	if err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	entries, err := h.leaderboard.Leaderboard(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	response.JSON(w, http.StatusOK, response.Leaderboard{Entries: response.LeaderboardFromModel(entries)})
}

// Events handles GET /api/v1/events
func (h *StatusHandler) Events(w http.ResponseWriter, r *http.Request) {
	sse.ServeSSE(w, r, h.hub)
}
