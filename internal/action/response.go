package action

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Response is the action result. Exactly one of Body (success) and Error
// (failure) is set.
type Response struct {
	StatusCode int             `json:"statusCode,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Error      *ErrorResult    `json:"error,omitempty"`
}

type ErrorResult struct {
	StatusCode int       `json:"statusCode"`
	Body       ErrorBody `json:"body"`
}

type ErrorBody struct {
	Error string `json:"error"`
}

// Status is the HTTP status the runtime answers with.
func (r Response) Status() int {
	if r.Error != nil {
		return r.Error.StatusCode
	}
	return r.StatusCode
}

// Message is the error message of a failed response.
func (r Response) Message() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Body.Error
}

// WriteHTTP writes the response the way a web action runtime unwraps it:
// status from the envelope, body as the raw upstream JSON or the error body.
func (r Response) WriteHTTP(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.Status())
	if r.Error != nil {
		_ = json.NewEncoder(w).Encode(r.Error.Body)
		return
	}
	_, _ = w.Write(r.Body)
}

func errorResponse(statusCode int, message string, log *logrus.Entry) Response {
	log.Infof("%d: %s", statusCode, message)
	return Response{
		Error: &ErrorResult{
			StatusCode: statusCode,
			Body:       ErrorBody{Error: message},
		},
	}
}
