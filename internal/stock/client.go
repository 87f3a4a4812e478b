// Package stock talks to the Adobe Stock media search API.
package stock

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"stocksearch/internal/config"
	"stocksearch/internal/logger"
	"stocksearch/internal/metrics"
)

// ResultColumns are the asset fields requested from the search API.
var ResultColumns = []string{"title", "details_url", "thumbnail_html_tag", "thumbnail_width"}

type Config struct {
	Endpoint string
	APIKey   string
	Product  string
	// Timeout bounds one search call. Zero means no client side timeout.
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
	logger *logrus.Logger
}

func New(cfg Config, logger *logrus.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = config.DefaultStockEndpoint
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		client: newHTTPClient(cfg),
	}
}

func newHTTPClient(cfg Config) *http.Client {
	t := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		MaxIdleConns:      100,
		IdleConnTimeout:   90 * time.Second,
		ForceAttemptHTTP2: true,
	}
	return &http.Client{Transport: t, Timeout: cfg.Timeout}
}

func (c *Client) Endpoint() string { return c.cfg.Endpoint }

// SearchURL builds the query URL for words.
func (c *Client) SearchURL(words string) (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("search_parameters[words]", words)
	q["result_columns[]"] = append([]string(nil), ResultColumns...)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Search issues exactly one GET for words on behalf of the token holder.
// The body and status are returned as received; a non-2xx status is not an
// error here, only transport failures are.
func (c *Client) Search(ctx context.Context, token, words string) ([]byte, int, error) {
	target, err := c.SearchURL(words)
	if err != nil {
		return nil, 0, err
	}

	log := logger.FromContext(ctx, c.logger)
	if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		log.WithFields(logrus.Fields{
			"url": target,
		}).Debug("stock.request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("X-Product", c.cfg.Product)
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("error").Inc()
		return nil, 0, fmt.Errorf("upstream do: %w", err)
	}
	defer res.Body.Close()
	metrics.UpstreamRequestsTotal.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, res.StatusCode, fmt.Errorf("read upstream body: %w", err)
	}

	if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		log.WithFields(logrus.Fields{
			"status":        res.StatusCode,
			"response_body": string(data),
		}).Debug("stock.response")
	}

	return data, res.StatusCode, nil
}
