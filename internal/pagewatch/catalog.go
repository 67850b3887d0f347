// File: internal/pagewatch/catalog.go
package pagewatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/dccon-cli/internal/browser/shim"
)

// CatalogPath is where the catalog script lives under the asset base URL.
const CatalogPath = "/lib/dccon_list.js"

const maxCatalogBytes = 8 << 20

// Doer sends HTTP requests. *http.Client and network.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ParseCatalog decodes an emoticon catalog. It accepts a bare JSON array or
// the published script form, `dcConsData = [...];`, in which case the text
// between the first '[' and the last ']' must be JSON.
func ParseCatalog(data []byte) ([]Descriptor, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	if trimmed[0] != '[' {
		start := bytes.IndexByte(trimmed, '[')
		end := bytes.LastIndexByte(trimmed, ']')
		if start < 0 || end < start {
			return nil, fmt.Errorf("catalog does not contain an array")
		}
		trimmed = trimmed[start : end+1]
	}

	var descriptors []Descriptor
	if err := json.Unmarshal(trimmed, &descriptors); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return descriptors, nil
}

// CatalogURL returns the catalog location for an asset base URL.
func CatalogURL(baseURL string) string {
	return shim.NormalizeBaseURL(baseURL) + CatalogPath
}

// FetchCatalog downloads and parses the catalog published under baseURL.
func FetchCatalog(ctx context.Context, client Doer, baseURL string) ([]Descriptor, error) {
	url := CatalogURL(baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("failed to fetch catalog from %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog from %s: %w", url, err)
	}
	return ParseCatalog(body)
}

// ReadCatalogFile parses a catalog saved on disk. A leading ~ is expanded.
func ReadCatalogFile(path string) ([]Descriptor, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand catalog path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}
