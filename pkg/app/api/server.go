// Package api implements app.Runner for the API server process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apperrors "github.com/docledger/middleware/pkg/app/errors"
	apphttp "github.com/docledger/middleware/pkg/app/http"
	"github.com/docledger/middleware/pkg/auth"
	"github.com/docledger/middleware/pkg/config"
	"github.com/docledger/middleware/pkg/document"
	"github.com/docledger/middleware/pkg/identity"
	"github.com/docledger/middleware/pkg/journal"
	"github.com/docledger/middleware/pkg/ledger"
	"github.com/docledger/middleware/pkg/pgutil"
	"github.com/docledger/middleware/pkg/storage"
)

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes new api server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("identity_mode", cfg.Identity.Mode),
	)

	verifier := s.buildVerifier(logger)

	store := storage.NewIPFSClient(&cfg.Storage, logger)

	ledgerClient, err := ledger.NewClient(&cfg.Ledger, logger)
	if err != nil {
		return fmt.Errorf("connect ledger: %w", err)
	}
	defer ledgerClient.Close()

	var jrnl journal.Store
	if cfg.Database.Enabled() {
		db, err := pgutil.ConnectDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer func() { _ = db.Close() }()

		pg := journal.NewStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("prepare journal schema: %w", err)
		}
		jrnl = pg

		logger.Info("Upload journal enabled",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database),
		)
	}

	registry := common.HexToAddress(cfg.Ledger.RegistryContract)
	docService := document.NewLog(
		document.NewService(store, ledgerClient, jrnl, registry, logger),
		logger,
	)

	router := s.setupRouter(verifier, docService, logger)

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

// buildVerifier selects the credential verifier by identity mode. Config
// validation has already restricted the mode to the supported values.
func (s *Server) buildVerifier(logger *zap.Logger) auth.Verifier {
	if s.cfg.Identity.Mode == "jwks" {
		return auth.NewJWTVerifier(
			s.cfg.Identity.JWKSURL,
			s.cfg.Identity.JWTIssuer,
			s.cfg.Identity.AddressClaim,
			s.cfg.Identity.RequestTimeout,
		)
	}
	return identity.NewDIDVerifier(&s.cfg.Identity, logger)
}

func (s *Server) setupRouter(
	verifier auth.Verifier,
	docService document.Service,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Server.WriteTimeout))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if s.cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Login validates the credential itself, so it stays outside the gate.
	r.Post("/login", apphttp.HandleError(login(verifier)))

	// Every document route requires a valid bearer token.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, logger))
		document.RegisterRoutes(r, docService, s.cfg.Server.MaxUploadBytes, logger)
	})

	return r
}

// login checks the bearer credential and reports the resolved account
// address without touching the store or the ledger.
func login(verifier auth.Verifier) apphttp.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		token, err := auth.BearerToken(r)
		if err != nil {
			return apperrors.UnAuthorizedError(err, "Authentication failed")
		}

		session, err := verifier.Verify(r.Context(), token)
		if err != nil {
			return apperrors.UnAuthorizedError(err, "Authentication failed")
		}

		apphttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"authenticated":  true,
			"accountAddress": session.AccountAddress,
		})
		return nil
	}
}
