// Package gateway pushes draft events to clients over WebSockets and serves
// the full-state snapshot they resync from.
package gateway

import (
	"context"
	"net/http"

	"github.com/mcdev12/pooldraft/go/internal/auth"
	"github.com/mcdev12/pooldraft/go/internal/draft/bus"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Service is the draft gateway: WebSocket fan-out plus the state endpoint.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	stateHandler      *StateHandler
	corsOrigins       []string
}

type Config struct {
	ConnectionConfig ConnectionConfig
	ConsumerName     string // empty for an ephemeral subscription
	CORSOrigins      []string
}

// DefaultConfig returns default configuration for the draft gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		CORSOrigins:      []string{"*"},
	}
}

// NewService wires the gateway. A nil verifier disables authentication.
func NewService(config Config, stateProvider StateProvider, subscriber bus.Subscriber, verifier *auth.Verifier) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, stateProvider, verifier),
		eventConsumer:     NewEventConsumer(connectionManager, subscriber, config.ConsumerName),
		stateHandler:      NewStateHandler(stateProvider, verifier),
		corsOrigins:       config.CORSOrigins,
	}
}

// Start runs the gateway until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting draft gateway service")

	if err := s.eventConsumer.Start(ctx); err != nil {
		return err
	}
	defer s.eventConsumer.Stop()

	s.connectionManager.Start(ctx)

	log.Info().Msg("draft gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("draft gateway routes registered")
}

// Handler returns the gateway routes behind CORS.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedOrigins: s.corsOrigins,
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(mux)
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() Stats {
	return s.connectionManager.GetConnectionStats()
}
