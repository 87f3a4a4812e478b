package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"stocksearch/internal/config"
	"stocksearch/internal/logger"
	"stocksearch/internal/metrics"
)

const validatePath = "/ims/validate_token/v1"

// IMS validates access tokens with the Adobe Identity Management System.
type IMS struct {
	baseURL  string
	clientID string
	client   *http.Client
	logger   *logrus.Logger
}

// NewIMS creates an IMS validator. clientID may be empty, in which case the
// client_id claim carried by each token is used.
func NewIMS(baseURL, clientID string, timeout time.Duration, logger *logrus.Logger) *IMS {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = config.DefaultIMSURL
	}
	return &IMS{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type imsValidation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (v *IMS) Validate(ctx context.Context, token string) (Result, error) {
	if token == "" {
		metrics.TokenValidationsTotal.WithLabelValues("ims", "invalid").Inc()
		return emptyToken, nil
	}

	clientID := v.clientID
	if clientID == "" {
		clientID = ClientIDFromToken(token)
	}

	form := url.Values{}
	form.Set("type", "access_token")
	form.Set("client_id", clientID)
	form.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+validatePath, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := v.client.Do(req)
	if err != nil {
		metrics.TokenValidationsTotal.WithLabelValues("ims", "error").Inc()
		return Result{}, fmt.Errorf("ims validate: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read ims body: %w", err)
	}
	if res.StatusCode >= http.StatusInternalServerError {
		metrics.TokenValidationsTotal.WithLabelValues("ims", "error").Inc()
		return Result{}, fmt.Errorf("ims validate: status %d", res.StatusCode)
	}

	var out imsValidation
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, fmt.Errorf("decode ims body: %w", err)
	}

	logger.FromContext(ctx, v.logger).WithFields(logrus.Fields{
		"status": res.StatusCode,
		"valid":  out.Valid,
	}).Debug("ims.validate")

	if !out.Valid {
		metrics.TokenValidationsTotal.WithLabelValues("ims", "invalid").Inc()
		reason := out.Error
		if reason == "" {
			reason = "rejected by ims"
		}
		return Result{Valid: false, Reason: reason}, nil
	}
	metrics.TokenValidationsTotal.WithLabelValues("ims", "valid").Inc()
	return Result{Valid: true}, nil
}

// ClientIDFromToken reads the client_id claim from a JWT access token
// without verifying it. Returns "" when the token is not a readable JWT.
func ClientIDFromToken(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return ""
	}
	var claims struct {
		ClientID string `json:"client_id"`
	}
	if json.Unmarshal(payload, &claims) != nil {
		return ""
	}
	return claims.ClientID
}
