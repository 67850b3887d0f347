// File: internal/discovery/discovery.go
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
)

// DefaultHost is where the DevTools endpoint listens when nothing else is configured.
const DefaultHost = "localhost"

// Client queries a browser's remote debugging endpoint for inspectable targets.
type Client struct {
	http   HTTPClient
	host   string
	logger *zap.Logger
}

// NewClient creates a discovery client. An empty host falls back to DefaultHost.
func NewClient(httpClient HTTPClient, host string, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClientAdapter(nil)
	}
	if host == "" {
		host = DefaultHost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   httpClient,
		host:   host,
		logger: logger.Named("discovery"),
	}
}

// Endpoint returns the target list URL for debugPort.
func (c *Client) Endpoint(debugPort string) string {
	return fmt.Sprintf("http://%s/json/list", net.JoinHostPort(c.host, debugPort))
}

// List fetches and decodes the full target list without filtering.
func (c *Client) List(ctx context.Context, debugPort string) ([]Target, error) {
	endpoint := c.Endpoint(debugPort)
	c.logger.Debug("Fetching debugger list.", zap.String("endpoint", endpoint))

	body, status, err := c.http.Get(ctx, endpoint)
	if err != nil {
		c.logger.Warn("Failed to fetch debugger list.", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, &DiscoveryError{Endpoint: endpoint, StatusCode: status, Err: err}
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		c.logger.Warn("Debugger list request was rejected.", zap.String("endpoint", endpoint), zap.Int("status", status))
		return nil, &DiscoveryError{Endpoint: endpoint, StatusCode: status}
	}

	var list []Target
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, &DiscoveryError{
			Endpoint:   endpoint,
			StatusCode: status,
			Err:        fmt.Errorf("decoding target list: %w", err),
		}
	}

	c.logger.Debug("Fetched debugger list.", zap.Int("targets", len(list)))
	return list, nil
}

// Discover returns the targets whose URL starts with targetPrefix, in the
// order the endpoint listed them. The result may be empty.
func (c *Client) Discover(ctx context.Context, debugPort, targetPrefix string) ([]Target, error) {
	list, err := c.List(ctx, debugPort)
	if err != nil {
		return nil, err
	}

	targets := FilterTargets(list, targetPrefix)
	c.logger.Info("Filtered debugger targets.",
		zap.String("prefix", targetPrefix),
		zap.Int("listed", len(list)),
		zap.Int("matched", len(targets)),
	)
	return targets, nil
}

// Probe reports whether the endpoint is reachable and lists at least one
// matching target. A discovery failure is returned alongside false so the
// caller can log it; it is not fatal to a polling loop.
func (c *Client) Probe(ctx context.Context, debugPort, targetPrefix string) (bool, error) {
	targets, err := c.Discover(ctx, debugPort, targetPrefix)
	if err != nil {
		return false, err
	}
	return len(targets) > 0, nil
}
