// File: internal/discovery/adapter.go
package discovery

import (
	"context"
	"io"
	"net/http"
)

// maxListBytes caps the /json/list body. A browser with a few hundred tabs
// stays well under this.
const maxListBytes = 4 << 20

// HTTPClient is the narrow view of an HTTP client that discovery needs.
type HTTPClient interface {
	Get(ctx context.Context, url string) (body []byte, statusCode int, err error)
}

// networkClientAdapter implements HTTPClient on top of a standard http.Client.
type networkClientAdapter struct {
	client *http.Client
}

// NewHTTPClientAdapter wraps client so it satisfies HTTPClient.
func NewHTTPClientAdapter(client *http.Client) HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &networkClientAdapter{client: client}
}

// Get issues a GET bound to ctx and returns the body with the status code.
func (a *networkClientAdapter) Get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListBytes))
	if err != nil {
		// The status is still meaningful to the caller.
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
