package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Request is one invocation of the action: flat parameters plus headers.
// Header names are stored lower-case.
type Request struct {
	Params  map[string]string
	Headers map[string]string
}

func NewRequest(params, headers map[string]string) Request {
	req := Request{Params: map[string]string{}, Headers: map[string]string{}}
	for k, v := range params {
		req.Params[k] = v
	}
	for k, v := range headers {
		req.Headers[strings.ToLower(k)] = v
	}
	return req
}

func (r Request) Param(name string) string { return r.Params[name] }

func (r Request) Header(name string) string { return r.Headers[strings.ToLower(name)] }

// StringParameters renders the request for debug logs with the
// authorization header value hidden.
func (r Request) StringParameters() string {
	headers := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		if k == "authorization" && v != "" {
			v = "<hidden>"
		}
		headers[k] = v
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(struct {
		Params  map[string]string `json:"params"`
		Headers map[string]string `json:"headers"`
	}{r.Params, headers})
	if err != nil {
		return fmt.Sprintf("%v", r.Params)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// BearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is absent or uses another scheme.
func BearerToken(r Request) string {
	auth := r.Header("authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// CheckMissingRequestInputs returns a client error message naming every
// missing header and parameter, or "" when all are present.
// Empty values count as missing.
func CheckMissingRequestInputs(r Request, requiredParams, requiredHeaders []string) string {
	var missingHeaders []string
	for _, h := range requiredHeaders {
		h = strings.ToLower(h)
		if r.Headers[h] == "" {
			missingHeaders = append(missingHeaders, h)
		}
	}
	var missingParams []string
	for _, p := range requiredParams {
		if r.Params[p] == "" {
			missingParams = append(missingParams, p)
		}
	}

	var parts []string
	if len(missingHeaders) > 0 {
		parts = append(parts, fmt.Sprintf("missing header(s) '%s'", strings.Join(missingHeaders, ",")))
	}
	if len(missingParams) > 0 {
		parts = append(parts, fmt.Sprintf("missing parameter(s) '%s'", strings.Join(missingParams, ",")))
	}
	return strings.Join(parts, " and ")
}
