// Package api serves the wallet index over REST, GraphQL, JSON-RPC and
// WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/api/graphql"
	"github.com/0xmhha/wallet-indexer/api/jsonrpc"
	apimiddleware "github.com/0xmhha/wallet-indexer/api/middleware"
	"github.com/0xmhha/wallet-indexer/api/websocket"
	"github.com/0xmhha/wallet-indexer/wallet"
)

// Wallet is the indexer surface the server exposes
type Wallet interface {
	jsonrpc.Wallet
	OnDiscovered(h wallet.DiscoveryHandler)
}

// Server represents the API server
type Server struct {
	config   *Config
	logger   *zap.Logger
	wallet   Wallet
	router   *chi.Mux
	server   *http.Server
	wsServer *websocket.Server
	limiter  *apimiddleware.RateLimiter
	done     chan struct{}
}

// NewServer creates a new API server
func NewServer(config *Config, logger *zap.Logger, w Wallet) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if w == nil {
		return nil, errors.New("wallet cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		logger: logger,
		wallet: w,
		router: chi.NewRouter(),
		done:   make(chan struct{}),
	}

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	s.server = &http.Server{
		Addr:           config.Address(),
		Handler:        s.router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(apimiddleware.Recovery(s.logger))
	s.router.Use(apimiddleware.Logger(s.logger))

	if s.config.EnableRateLimit {
		s.limiter = apimiddleware.NewRateLimiter(s.config.RateLimitPerSecond, s.config.RateLimitBurst)
		s.router.Use(apimiddleware.RateLimit(s.limiter, s.logger))
		go s.sweepLimiter()
		s.logger.Info("rate limiting enabled",
			zap.Float64("rate_per_second", s.config.RateLimitPerSecond),
			zap.Int("burst", s.config.RateLimitBurst))
	}

	if s.config.EnableCORS {
		s.router.Use(s.cors)
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		for _, allowed := range s.config.AllowedOrigins {
			if allowed == "*" || allowed == origin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Upgrade, Connection")
				w.Header().Set("Access-Control-Max-Age", "300")
				break
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sweepLimiter() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.limiter.Sweep()
		}
	}
}

func (s *Server) setupRoutes() error {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/version", s.handleVersion)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Route("/accounts/{address}", func(r chi.Router) {
			r.Get("/transactions", s.handleTransactions)
			r.Get("/hashes", s.handleHashes)
			r.Post("/scan", s.handleScan)
			r.Post("/broadcast", s.handleBroadcast)
		})
		r.Get("/tracked", s.handleTracked)
		r.Put("/tracked/{address}", s.handleTrack)
		r.Delete("/tracked/{address}", s.handleUntrack)
		r.Post("/msgs/change-role/encode", s.handleEncodeChangeRole)
		r.Post("/msgs/change-role/decode", s.handleDecodeChangeRole)
	})

	if s.config.EnableWebSocket {
		s.wsServer = websocket.NewServer(s.logger.Named("ws"))
		s.wallet.OnDiscovered(s.wsServer.Notify)
		s.router.Get(s.config.WebSocketPath, s.wsServer.ServeHTTP)
		s.logger.Info("WebSocket API enabled", zap.String("path", s.config.WebSocketPath))
	}

	if s.config.EnableGraphQL {
		h, err := graphql.NewHandler(s.wallet, s.logger.Named("graphql"))
		if err != nil {
			return fmt.Errorf("failed to create GraphQL handler: %w", err)
		}
		s.router.Handle(s.config.GraphQLPath, h)
		s.logger.Info("GraphQL API enabled", zap.String("path", s.config.GraphQLPath))
	}

	if s.config.EnableJSONRPC {
		s.router.Post(s.config.JSONRPCPath, jsonrpc.NewServer(s.wallet, s.logger.Named("jsonrpc")).ServeHTTP)
		s.logger.Info("JSON-RPC API enabled", zap.String("path", s.config.JSONRPCPath))
	}

	return nil
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Timestamp        string `json:"timestamp"`
	TrackedAddresses int    `json:"tracked_addresses"`
	WebSocketClients int    `json:"websocket_clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:           "ok",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		TrackedAddresses: len(s.wallet.Tracked()),
	}
	if s.wsServer != nil {
		resp.WebSocketClients = s.wsServer.Hub().ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "wallet-indexer",
		"version": s.config.Version,
	})
}

// Router returns the HTTP handler, for tests and embedding
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until Stop. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		zap.String("address", s.config.Address()),
		zap.Bool("graphql", s.config.EnableGraphQL),
		zap.Bool("jsonrpc", s.config.EnableJSONRPC),
		zap.Bool("websocket", s.config.EnableWebSocket),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")

	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.wsServer != nil {
		s.wsServer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("API server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
