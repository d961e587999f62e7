package server

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/audit/email"
	"github.com/sitepulse/engine/internal/common/httputil"
)

const leadSendTimeout = 15 * time.Second

type leadResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id,omitempty"`
}

// handleLead captures a contact request and forwards it over email.
func (s *Server) handleLead(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	setCORSHeaders(ctx)

	switch {
	case ctx.IsOptions():
		writePreflight(ctx)
		return
	case !ctx.IsPost():
		httputil.JSONErrors(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.leadSender == nil {
		httputil.JSONErrors(ctx, fasthttp.StatusServiceUnavailable, "lead capture not configured")
		return
	}

	var lead email.Lead
	if err := json.Unmarshal(ctx.PostBody(), &lead); err != nil {
		logger.Warn("Malformed lead body", zap.Error(err))
		httputil.JSONErrors(ctx, fasthttp.StatusBadRequest, "request body is not valid JSON")
		return
	}

	if errs := validateLead(lead); len(errs) > 0 {
		httputil.JSONErrors(ctx, fasthttp.StatusBadRequest, errs...)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.Background(), leadSendTimeout)
	defer cancel()

	id, err := s.leadSender.SendLead(sendCtx, lead)
	if err != nil {
		logger.Error("Lead dispatch failed", zap.String("lead_email", lead.Email), zap.Error(err))
		httputil.JSONErrors(ctx, fasthttp.StatusInternalServerError, "failed to send lead")
		return
	}

	httputil.JSONOK(ctx, leadResponse{OK: true, ID: id})
}

func validateLead(lead email.Lead) []string {
	var errs []string
	if lead.Email == "" {
		errs = append(errs, "email is required")
	} else if !strings.Contains(lead.Email, "@") || !strings.Contains(lead.Email, ".") {
		errs = append(errs, "email is not valid")
	}
	if lead.Website == "" {
		errs = append(errs, "website is required")
	}
	return errs
}
