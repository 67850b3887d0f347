// internal/browser/shim/shim.go
package shim

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed watcher.js
var watcherTemplate string

const (
	// BaseURLPlaceholder is replaced in the JS template with the JSON-encoded asset base URL.
	BaseURLPlaceholder = "/*{{DCCON_BASE_URL}}*/"

	// GuardKey is the window property holding the watcher's install state.
	GuardKey = "__custom_dccon"

	// Values the watcher expression evaluates to.
	ResultInstalled        = "execute done"
	ResultAlreadyInstalled = "already executed"
)

// Template returns the embedded watcher template.
func Template() string {
	return watcherTemplate
}

// NormalizeBaseURL trims whitespace and trailing slashes; the watcher appends
// paths starting with "/".
func NormalizeBaseURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}

// BuildWatcherScript injects the base URL into the template as a JS string literal.
func BuildWatcherScript(template, baseURL string) (string, error) {
	if template == "" {
		return "", fmt.Errorf("template is empty")
	}

	if !strings.Contains(template, BaseURLPlaceholder) {
		return "", fmt.Errorf("template does not contain the required placeholder: %s", BaseURLPlaceholder)
	}

	// json.Marshal escapes quotes, backslashes and U+2028/U+2029, so the
	// result is always a valid JS string literal.
	literal, err := json.Marshal(NormalizeBaseURL(baseURL))
	if err != nil {
		return "", fmt.Errorf("failed to encode base URL: %w", err)
	}

	script := strings.Replace(template, BaseURLPlaceholder, string(literal), 1)
	return script, nil
}

// WatcherScript renders the embedded watcher for baseURL.
func WatcherScript(baseURL string) (string, error) {
	return BuildWatcherScript(watcherTemplate, baseURL)
}
