package main

import (
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/mcdev12/pooldraft/go/internal/auth"
	"github.com/mcdev12/pooldraft/go/internal/config"
	"github.com/mcdev12/pooldraft/go/internal/draft/draftapi"
	"github.com/mcdev12/pooldraft/go/internal/draft/gateway"
	"github.com/mcdev12/pooldraft/go/internal/draft/outbox"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// embedded holds the components mounted on the API mux in embedded mode.
type embedded struct {
	gateway *gateway.Service
	health  *outbox.HealthChecker
}

func setupServer(cfg *config.Config, services *Services, verifier *auth.Verifier, extra *embedded) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{draftapi.RejectionHeader},
	})

	registerServices(mux, services, auth.NewInterceptor(verifier, cfg.Auth.Disabled))

	if extra != nil {
		extra.gateway.RegisterRoutes(mux)
		mux.Handle("GET /outbox/health", extra.health)
		mux.HandleFunc("GET /metrics", extra.health.ServeMetrics)
	}

	setupHealthCheck(mux)

	handler := c.Handler(mux)

	// HTTP/2 without TLS for connect and gRPC clients
	return &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerServices(mux *http.ServeMux, services *Services, interceptor connect.Interceptor) {
	opts := connect.WithInterceptors(interceptor)

	// Register draft service
	draftServicePath, draftServiceHandler := draftapi.NewDraftServiceHandler(services.Drafts, opts)
	mux.Handle(draftServicePath, draftServiceHandler)

	// Register pick service
	pickServicePath, pickServiceHandler := draftapi.NewPickServiceHandler(services.Picks, opts)
	mux.Handle(pickServicePath, pickServiceHandler)
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
