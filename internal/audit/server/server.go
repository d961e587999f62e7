// Package server is the public HTTP surface of the audit engine: the
// /check and /lead endpoints plus health and readiness probes, served
// over fasthttp.
package server

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/audit/email"
	"github.com/sitepulse/engine/internal/audit/metrics"
	"github.com/sitepulse/engine/internal/audit/orchestrator"
	"github.com/sitepulse/engine/internal/common/configtypes"
	"github.com/sitepulse/engine/internal/common/httputil"
	"github.com/sitepulse/engine/internal/common/redis"
	"github.com/sitepulse/engine/internal/common/requestid"
)

// readyCheckTimeout bounds the backend ping on /ready.
const readyCheckTimeout = 3 * time.Second

// Server routes audit requests. The redis client is nil unless the
// redis cache backend is active; the lead sender is nil when lead
// capture is disabled.
type Server struct {
	configManager configtypes.EngineConfigManager
	orchestrator  *orchestrator.Orchestrator
	leadSender    *email.Sender
	redisClient   *redis.Client
	collector     *metrics.Collector
	limiter       *limiter
	logger        *zap.Logger
}

func NewServer(
	configManager configtypes.EngineConfigManager,
	auditOrchestrator *orchestrator.Orchestrator,
	leadSender *email.Sender,
	redisClient *redis.Client,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Server {
	cfg := configManager.GetConfig()
	concurrency := resolveConcurrency(cfg.Server.Concurrency, logger)

	return &Server{
		configManager: configManager,
		orchestrator:  auditOrchestrator,
		leadSender:    leadSender,
		redisClient:   redisClient,
		collector:     collector,
		limiter:       newLimiter(concurrency),
		logger:        logger,
	}
}

// HandleRequest is the fasthttp entry point for every inbound request.
func (s *Server) HandleRequest(ctx *fasthttp.RequestCtx) {
	requestID := requestid.GenerateRequestID(string(ctx.Request.Header.Peek("X-Request-ID")))
	ctx.Response.Header.Set("X-Request-ID", requestID)

	logger := s.logger.With(zap.String("request_id", requestID))

	switch string(ctx.Path()) {
	case "/health":
		s.handleHealth(ctx)
	case "/ready":
		s.handleReady(ctx)
	case "/check":
		s.handleCheck(ctx, requestID, logger)
	case "/lead":
		s.handleLead(ctx, logger)
	default:
		logger.Warn("Not found", zap.String("path", string(ctx.Path())))
		httputil.JSONErrors(ctx, fasthttp.StatusNotFound, "endpoint not found")
	}
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Content-Type", "text/plain")
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.SetBodyString("OK")
}

// handleReady answers 200 once the cache backend is reachable. The
// memory backend has nothing to check.
func (s *Server) handleReady(ctx *fasthttp.RequestCtx) {
	if s.redisClient != nil {
		checkCtx, cancel := context.WithTimeout(context.Background(), readyCheckTimeout)
		defer cancel()

		if err := s.redisClient.HealthCheck(checkCtx); err != nil {
			s.logger.Warn("Readiness check failed", zap.Error(err))
			httputil.JSONErrors(ctx, fasthttp.StatusServiceUnavailable, "cache backend not available")
			return
		}
	}

	ctx.Response.Header.Set("Content-Type", "text/plain")
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.SetBodyString("OK")
}
