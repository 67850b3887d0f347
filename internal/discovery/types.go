// File: internal/discovery/types.go
package discovery

import "strings"

// Target is one inspectable page as listed by the DevTools HTTP endpoint.
// Only URL and WebSocketDebuggerURL drive behavior; the rest is carried for logging.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// FilterTargets keeps the targets whose URL starts with prefix and which
// expose a command channel address. Input order is preserved. An empty
// prefix matches every target with a non-empty URL.
func FilterTargets(list []Target, prefix string) []Target {
	var kept []Target
	for _, t := range list {
		if t.URL == "" || !strings.HasPrefix(t.URL, prefix) {
			continue
		}
		if t.WebSocketDebuggerURL == "" {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// Addresses projects targets onto their command channel addresses.
func Addresses(targets []Target) []string {
	addrs := make([]string, 0, len(targets))
	for _, t := range targets {
		addrs = append(addrs, t.WebSocketDebuggerURL)
	}
	return addrs
}
