// Package action implements the stock-search action: it checks the
// caller's bearer token and proxies one search to the stock API.
package action

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"stocksearch/internal/identity"
	"stocksearch/internal/logger"
	"stocksearch/internal/metrics"
)

const extraLoggingHeader = "x-ow-extra-logging"

var (
	requiredParams  = []string{"words"}
	requiredHeaders = []string{"Authorization"}
)

// Searcher performs the upstream search. Search must not retry.
type Searcher interface {
	Search(ctx context.Context, token, words string) ([]byte, int, error)
	Endpoint() string
}

type Handler struct {
	Log      *logrus.Logger
	Identity identity.Validator
	Stock    Searcher
}

// Invoke runs one action invocation. It never returns an error: every
// failure is classified into the response and logged.
func (h *Handler) Invoke(ctx context.Context, req Request) (resp Response) {
	log := h.entry(ctx, req)
	ctx = logger.NewContext(ctx, log)
	defer func() {
		metrics.ActionResponsesTotal.WithLabelValues(strconv.Itoa(resp.Status())).Inc()
	}()
	defer func() {
		if p := recover(); p != nil {
			resp = serverError(fmt.Errorf("panic: %v", p), log)
		}
	}()

	log.Info("Calling the main action")
	log.Debug(req.StringParameters())

	if msg := CheckMissingRequestInputs(req, requiredParams, requiredHeaders); msg != "" {
		return errorResponse(http.StatusBadRequest, msg, log)
	}

	token := BearerToken(req)

	validation, err := h.Identity.Validate(ctx, token)
	if err != nil {
		return serverError(fmt.Errorf("validate token: %w", err), log)
	}
	if !validation.Valid {
		log.WithField("reason", validation.Reason).Debug("token rejected")
		return errorResponse(http.StatusForbidden, "invalid token", log)
	}

	done := logger.Track(log, "stock search")
	data, status, err := h.Stock.Search(ctx, token, req.Param("words"))
	done()
	if err != nil {
		return serverError(fmt.Errorf("stock search: %w", err), log)
	}
	if status < 200 || status >= 300 {
		return errorResponse(status, "failed fetching "+h.Stock.Endpoint(), log)
	}

	var body json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return serverError(fmt.Errorf("decode stock body: %w", err), log)
	}

	resp = Response{StatusCode: http.StatusOK, Body: body}
	log.Infof("%d: successful request", resp.StatusCode)
	return resp
}

func serverError(err error, log *logrus.Entry) Response {
	log.WithError(err).Error("action failed")
	return errorResponse(http.StatusInternalServerError, "server error", log)
}

// entry picks the invocation logger. The extra logging header turns on
// debug output for this invocation only.
func (h *Handler) entry(ctx context.Context, req Request) *logrus.Entry {
	base := h.Log
	if req.Header(extraLoggingHeader) == "on" {
		base = logger.WithLevel(base, logrus.DebugLevel)
	}
	return logger.For(ctx, base).WithField("action", "stock-search")
}
