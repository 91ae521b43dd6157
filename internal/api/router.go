// Package api serves the operator HTTP API and the WebSocket player endpoint.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/dicemeister/internal/api/handler"
	"github.com/mcoot/dicemeister/internal/api/middleware"
	"github.com/mcoot/dicemeister/internal/api/response"
	"github.com/mcoot/dicemeister/internal/api/sse"
	commonmw "github.com/mcoot/dicemeister/internal/middleware"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger        *slog.Logger
	Status        handler.StatusSource
	Leaderboard   handler.LeaderboardSource
	Hub           *sse.Hub
	Gateway       handler.ConnSubmitter
	OperatorToken string
	// LeaderboardSize caps the leaderboard endpoint
	LeaderboardSize int
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 5
	}

	statusHandler := handler.NewStatusHandler(cfg.Status, cfg.Leaderboard, cfg.Hub, cfg.LeaderboardSize)
	playerHandler := handler.NewPlayerHandler(cfg.Gateway, cfg.Logger)

	loggingMiddleware := commonmw.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)
	operatorMiddleware := middleware.OperatorAuth(cfg.OperatorToken)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Operator view
	operator := api.NewRoute().Subrouter()
	operator.Use(operatorMiddleware)
	operator.HandleFunc("/status", statusHandler.Status).Methods(http.MethodGet)
	operator.HandleFunc("/leaderboard", statusHandler.Leaderboard).Methods(http.MethodGet)
	operator.HandleFunc("/events", statusHandler.Events).Methods(http.MethodGet)

	// Player protocol over WebSocket
	r.Handle("/ws", recoveryMiddleware(loggingMiddleware(http.HandlerFunc(playerHandler.Connect)))).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
