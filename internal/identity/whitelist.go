package identity

import (
	"context"
	"crypto/subtle"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stocksearch/internal/metrics"
)

type TokenEntry struct {
	Token string `yaml:"token"`
	User  string `yaml:"user"`
	Role  string `yaml:"role"`
}

// Whitelist is a static token list used by the local identity manager.
type Whitelist struct {
	Tokens []TokenEntry `yaml:"tokens"`
}

func LoadWhitelist(path string) (*Whitelist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read whitelist: %w", err)
	}

	var wl Whitelist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parse whitelist: %w", err)
	}
	for i, e := range wl.Tokens {
		if e.Token == "" {
			return nil, fmt.Errorf("whitelist entry %d has no token", i)
		}
	}
	return &wl, nil
}

// Lookup returns the entry for token, if any.
func (w *Whitelist) Lookup(token string) (TokenEntry, bool) {
	for _, e := range w.Tokens {
		if subtle.ConstantTimeCompare([]byte(e.Token), []byte(token)) == 1 {
			return e, true
		}
	}
	return TokenEntry{}, false
}

func (w *Whitelist) Validate(_ context.Context, token string) (Result, error) {
	if token == "" {
		metrics.TokenValidationsTotal.WithLabelValues("whitelist", "invalid").Inc()
		return emptyToken, nil
	}
	if _, ok := w.Lookup(token); ok {
		metrics.TokenValidationsTotal.WithLabelValues("whitelist", "valid").Inc()
		return Result{Valid: true}, nil
	}
	metrics.TokenValidationsTotal.WithLabelValues("whitelist", "invalid").Inc()
	return Result{Valid: false, Reason: "Access denied: token not in whitelist"}, nil
}
