package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mcoot/dicemeister/internal/protocol"
)

// ConnSubmitter runs the authentication dialogue for a player connection
type ConnSubmitter interface {
	Submit(ctx context.Context, conn protocol.Conn) error
}

// PlayerHandler accepts players over WebSocket
type PlayerHandler struct {
	gateway ConnSubmitter
	logger  *slog.Logger
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(gateway ConnSubmitter, logger *slog.Logger) *PlayerHandler {
	return &PlayerHandler{gateway: gateway, logger: logger}
}

// Connect handles GET /ws. The connection outlives the request, so the
// dialogue runs detached from the request context.
func (h *PlayerHandler) Connect(w http.ResponseWriter, r *http.Request) {
	conn, err := protocol.Upgrade(w, r)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Info("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	if err := h.gateway.Submit(context.WithoutCancel(r.Context()), conn); err != nil {
		h.logger.Warn("websocket player rejected", slog.String("error", err.Error()))
	}
}
