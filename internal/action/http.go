package action

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 20

// ServeHTTP exposes the action as a web action: query and body
// parameters become Params, request headers become Headers.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{Error: "method not allowed"})
		return
	}

	req, err := RequestFromHTTP(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: err.Error()})
		return
	}

	h.Invoke(r.Context(), req).WriteHTTP(w)
}

// RequestFromHTTP flattens an HTTP request into an action Request.
// Form and JSON object bodies are merged over the query string.
func RequestFromHTTP(r *http.Request) (Request, error) {
	params := map[string]string{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	if r.Body != nil && r.Method == http.MethodPost {
		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch ct {
		case "application/json":
			var body map[string]any
			dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
			if err := dec.Decode(&body); err != nil {
				return Request{}, fmt.Errorf("invalid json body")
			}
			for k, v := range body {
				switch val := v.(type) {
				case string:
					params[k] = val
				case nil:
				default:
					b, _ := json.Marshal(val)
					params[k] = string(b)
				}
			}
		case "application/x-www-form-urlencoded":
			r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
			if err := r.ParseForm(); err != nil {
				return Request{}, fmt.Errorf("invalid form body")
			}
			for k, v := range r.PostForm {
				if len(v) > 0 {
					params[k] = v[0]
				}
			}
		}
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}
	return Request{Params: params, Headers: headers}, nil
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
