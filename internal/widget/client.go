package widget

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ActionClient calls the stock-search action.
type ActionClient struct {
	url          string
	http         *http.Client
	extraLogging bool
}

func NewActionClient(actionURL string, client *http.Client, extraLogging bool) *ActionClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &ActionClient{url: actionURL, http: client, extraLogging: extraLogging}
}

// Search sends the form as query string. The status and body are returned
// whatever the status; only transport failures are errors.
func (c *ActionClient) Search(ctx context.Context, token string, form url.Values) (int, []byte, error) {
	sep := "?"
	if strings.Contains(c.url, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+sep+form.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.extraLogging {
		req.Header.Set("x-ow-extra-logging", "on")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("action request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("read action body: %w", err)
	}
	return res.StatusCode, body, nil
}
