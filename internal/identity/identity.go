// Package identity validates bearer tokens against an identity provider.
package identity

import "context"

// Result is the outcome of one token validation. It is never cached.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Validator checks a bearer token. A returned error means the provider
// could not be asked, not that the token is bad.
type Validator interface {
	Validate(ctx context.Context, token string) (Result, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, token string) (Result, error)

func (f ValidatorFunc) Validate(ctx context.Context, token string) (Result, error) {
	return f(ctx, token)
}

var emptyToken = Result{Valid: false, Reason: "missing token"}
