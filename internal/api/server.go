// Package api exposes the risk engine over HTTP. The engine stays pure; this
// layer owns uploads, per-drug fan-out, explanation annotation, and audit
// writes.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/audit"
	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
	"github.com/Shivendra2129/-PharmaGuard/internal/explain"
	"github.com/Shivendra2129/-PharmaGuard/internal/service"
	"github.com/Shivendra2129/-PharmaGuard/internal/vcf"
)

// Server is the HTTP front of the assessment pipeline.
type Server struct {
	cfg            domain.ServerConfig
	router         *gin.Engine
	server         *http.Server
	assessor       *service.Assessor
	parser         *vcf.Parser
	explainer      *explain.Service
	store          audit.Store
	logger         *logrus.Logger
	maxUploadBytes int64
}

// NewServer wires the handlers and middleware around the engine.
func NewServer(
	cfg domain.ServerConfig,
	assessor *service.Assessor,
	parser *vcf.Parser,
	explainer *explain.Service,
	store audit.Store,
	logger *logrus.Logger,
) *Server {
	if logger.GetLevel() == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware(cfg.CORSOrigins))
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())

	s := &Server{
		cfg:            cfg,
		router:         router,
		assessor:       assessor,
		parser:         parser,
		explainer:      explainer,
		store:          store,
		logger:         logger,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analyze", rateLimitMiddleware(s.cfg.RateLimitPerSec, s.cfg.RateLimitBurst), s.handleAnalyze)
		v1.GET("/supported-drugs", s.handleSupportedDrugs)
		v1.GET("/supported-genes", s.handleSupportedGenes)
		v1.GET("/assessments/:patient_id", s.handlePatientHistory)
	}
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}
