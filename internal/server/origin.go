// Package server normalizes and validates HTTP origins for WebSocket requests
// to enforce configured access control.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
)

var errInvalidOrigin = errors.New("origin must be scheme://host[:port]")

// defaultPorts are dropped from origins so "https://a.example:443" and
// "https://a.example" compare equal.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
}

// originPolicy is the allow-list applied to WebSocket upgrades. Entries are
// stored in the form produced by originKey.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string, log *slog.Logger) originPolicy {
	policy := originPolicy{allowed: make(map[string]struct{}, len(origins))}

	for _, raw := range origins {
		switch origin := strings.TrimSpace(raw); origin {
		case "":
		case "*":
			policy.allowAll = true
		default:
			key, err := originKey(origin)
			if err != nil {
				log.Warn("Ignoring invalid origin in configuration", "origin", raw, "error", err)
				continue
			}
			policy.allowed[key] = struct{}{}
		}
	}

	return policy
}

// allows reports whether the request's Origin header is on the list. With a
// wildcard every request passes, including ones without an Origin header.
func (p originPolicy) allows(r *http.Request) bool {
	if p.allowAll {
		return true
	}

	key, err := originKey(r.Header.Get("Origin"))
	if err != nil {
		return false
	}

	_, ok := p.allowed[key]
	return ok
}

// originKey reduces origin to lower-case scheme://host[:port], dropping the
// path and the scheme's default port. Origins carrying credentials are
// rejected.
func originKey(origin string) (string, error) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidOrigin, err)
	}
	if parsed.Scheme == "" || parsed.Hostname() == "" || parsed.User != nil {
		return "", errInvalidOrigin
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()

	switch {
	case port != "" && port != defaultPorts[scheme]:
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}

	return scheme + "://" + host, nil
}
