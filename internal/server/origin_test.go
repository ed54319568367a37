package server

import (
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestOriginPolicy_Allows(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	tests := []struct {
		name     string
		allowed  []string
		origin   string
		expected bool
	}{
		{name: "Exact match", allowed: []string{"http://localhost:8080"}, origin: "http://localhost:8080", expected: true},
		{name: "Missing Origin header", allowed: []string{"http://localhost:8080"}, origin: "", expected: false},
		{name: "Malformed Origin URL", allowed: []string{"http://localhost:8080"}, origin: "://bad", expected: false},
		{name: "Case insensitive", allowed: []string{"HTTP://LocalHost:8080"}, origin: "http://localhost:8080", expected: true},
		{name: "Different port", allowed: []string{"http://localhost:8080"}, origin: "http://localhost:9090", expected: false},
		{name: "Path component ignored", allowed: []string{"http://localhost:8080/app"}, origin: "http://localhost:8080", expected: true},
		{name: "Scheme difference", allowed: []string{"http://localhost:8080"}, origin: "https://localhost:8080", expected: false},
		{name: "Wildcard", allowed: []string{"*"}, origin: "https://anything.example", expected: true},
		{name: "Wildcard without Origin header", allowed: []string{"*"}, origin: "", expected: true},
		{name: "Invalid configured origin skipped", allowed: []string{"not-an-origin", "http://ok.example"}, origin: "http://ok.example", expected: true},
		{name: "Empty allow-list", allowed: nil, origin: "http://localhost:8080", expected: false},
		{name: "Default port dropped", allowed: []string{"https://chat.example:443"}, origin: "https://chat.example", expected: true},
		{name: "Default port in header", allowed: []string{"http://chat.example"}, origin: "http://chat.example:80", expected: true},
		{name: "Non-default port kept", allowed: []string{"https://chat.example"}, origin: "https://chat.example:8443", expected: false},
		{name: "IPv6 host", allowed: []string{"http://[::1]:8080"}, origin: "http://[::1]:8080", expected: true},
		{name: "Credentials in configured origin rejected", allowed: []string{"http://user:pw@chat.example"}, origin: "http://chat.example", expected: false},
		{name: "Whitespace around configured origin", allowed: []string{"  http://chat.example  "}, origin: "http://chat.example", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := newOriginPolicy(tt.allowed, log)
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}

			require.Equal(t, tt.expected, policy.allows(r))
		})
	}
}

func TestOriginKey(t *testing.T) {
	tests := []struct {
		origin   string
		expected string
		wantErr  bool
	}{
		{origin: "HTTPS://Chat.Example:443/app", expected: "https://chat.example"},
		{origin: "http://chat.example:8080", expected: "http://chat.example:8080"},
		{origin: "http://[::1]", expected: "http://[::1]"},
		{origin: "http://[::1]:80", expected: "http://[::1]"},
		{origin: "", wantErr: true},
		{origin: "chat.example", wantErr: true},
		{origin: "http://u@chat.example", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			key, err := originKey(tt.origin)
			if tt.wantErr {
				require.ErrorIs(t, err, errInvalidOrigin)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, key)
		})
	}
}
