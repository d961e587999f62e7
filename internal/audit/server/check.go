package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/audit/orchestrator"
	"github.com/sitepulse/engine/internal/audit/snapshot"
	"github.com/sitepulse/engine/internal/common/httputil"
)

// checkRequest is the POST /check body.
type checkRequest struct {
	URL      string `json:"url"`
	NoCache  bool   `json:"nocache"`
	Snapshot bool   `json:"snapshot"`
}

// pingResponse answers a bare GET /check.
type pingResponse struct {
	OK   bool   `json:"ok"`
	Ping string `json:"ping"`
}

// handleCheck dispatches the audit endpoint: CORS preflight, snapshot
// loads, the bare ping, and live audits.
func (s *Server) handleCheck(ctx *fasthttp.RequestCtx, requestID string, logger *zap.Logger) {
	setCORSHeaders(ctx)

	switch {
	case ctx.IsOptions():
		writePreflight(ctx)
	case ctx.IsGet():
		s.handleCheckGet(ctx, requestID, logger)
	case ctx.IsPost():
		s.handleCheckPost(ctx, requestID, logger)
	default:
		logger.Warn("Method not allowed", zap.String("method", string(ctx.Method())))
		httputil.JSONErrors(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCheckGet(ctx *fasthttp.RequestCtx, requestID string, logger *zap.Logger) {
	args := ctx.QueryArgs()

	blob := string(args.Peek("blob"))
	id := string(args.Peek("id"))
	if blob != "" || id != "" {
		s.serveSnapshot(ctx, blob, id, requestID, logger)
		return
	}

	target := string(args.Peek("url"))
	if target == "" {
		httputil.JSONOK(ctx, pingResponse{OK: true, Ping: "pong"})
		return
	}

	s.runAudit(ctx, target, orchestrator.Options{
		NoCache:   isTruthy(string(args.Peek("nocache"))),
		RequestID: requestID,
	}, logger)
}

func (s *Server) handleCheckPost(ctx *fasthttp.RequestCtx, requestID string, logger *zap.Logger) {
	var req checkRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		logger.Warn("Malformed request body", zap.Error(err))
		httputil.JSONErrors(ctx, fasthttp.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if req.URL == "" {
		httputil.JSONErrors(ctx, fasthttp.StatusBadRequest, "url is required")
		return
	}

	s.runAudit(ctx, req.URL, orchestrator.Options{
		NoCache:   req.NoCache,
		Snapshot:  req.Snapshot,
		RequestID: requestID,
	}, logger)
}

// runAudit executes one audit under the concurrency limiter. The audit
// context deliberately ignores the inbound connection: a client that
// disconnects mid-run does not waste the probes already spent, and the
// result still fills the cache.
func (s *Server) runAudit(ctx *fasthttp.RequestCtx, target string, opts orchestrator.Options, logger *zap.Logger) {
	cfg := s.configManager.GetConfig()

	release, ok := s.limiter.acquire(cfg.Server.Timeout.ToDuration())
	if !ok {
		logger.Warn("Audit concurrency limit reached", zap.String("url", target))
		httputil.JSONErrors(ctx, fasthttp.StatusServiceUnavailable, "server is at capacity, retry shortly")
		return
	}
	defer release()

	logger.Info("Starting audit",
		zap.String("url", target),
		zap.Bool("nocache", opts.NoCache),
		zap.Bool("snapshot", opts.Snapshot))

	report, err := s.orchestrator.Audit(context.Background(), target, opts)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidTarget) {
			httputil.JSONErrors(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
		logger.Error("Audit failed", zap.String("url", target), zap.Error(err))
		httputil.JSONErrors(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}

	httputil.JSONOK(ctx, report)
}

// serveSnapshot loads a persisted report by blob path/URL or legacy id.
func (s *Server) serveSnapshot(ctx *fasthttp.RequestCtx, blob, id, requestID string, logger *zap.Logger) {
	loadCtx, cancel := context.WithTimeout(context.Background(), s.configManager.GetConfig().Server.Timeout.ToDuration())
	defer cancel()

	report, err := s.orchestrator.LoadSnapshot(loadCtx, blob, id, requestID)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			logger.Info("Snapshot not found",
				zap.String("blob", blob),
				zap.String("id", id),
				zap.Error(err))
			httputil.JSONErrors(ctx, fasthttp.StatusNotFound, err.Error())
			return
		}
		logger.Error("Snapshot load failed", zap.Error(err))
		httputil.JSONErrors(ctx, fasthttp.StatusInternalServerError, fmt.Sprintf("snapshot load failed: %v", err))
		return
	}

	httputil.JSONOK(ctx, report)
}

// setCORSHeaders attaches the CORS response headers the widget embeds
// rely on. The Origin is echoed so credentialed embeds keep working.
func setCORSHeaders(ctx *fasthttp.RequestCtx) {
	origin := string(ctx.Request.Header.Peek("Origin"))
	if origin == "" {
		origin = "*"
	}
	ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
}

// writePreflight answers an OPTIONS preflight with 204.
func writePreflight(ctx *fasthttp.RequestCtx) {
	requested := string(ctx.Request.Header.Peek("Access-Control-Request-Headers"))
	if requested == "" {
		requested = "Content-Type"
	}
	ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	ctx.Response.Header.Set("Access-Control-Allow-Headers", requested)
	ctx.Response.Header.Set("Access-Control-Max-Age", "86400")
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func isTruthy(v string) bool {
	return v == "1" || v == "true"
}
