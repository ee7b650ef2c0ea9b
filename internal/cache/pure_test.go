package cache

import (
	"strings"
	"testing"
)

func TestHashClient_Deterministic(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"

	if hashClient(ip) != hashClient(ip) {
		t.Error("Same client should produce same hash")
	}
}

func TestHashClient_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip   string
	}{
		{"IPv4", "192.168.1.1"},
		{"IPv4 localhost", "127.0.0.1"},
		{"IPv6 localhost", "::1"},
		{"IPv6 full", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"empty", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if hash := hashClient(tt.ip); len(hash) != 16 {
				t.Errorf("hashClient(%q) length = %d, want 16", tt.ip, len(hash))
			}
		})
	}
}

func TestHashClient_Different(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip1  string
		ip2  string
	}{
		{"different IPv4", "192.168.1.1", "192.168.1.2"},
		{"IPv4 vs IPv6", "127.0.0.1", "::1"},
		{"public vs private", "8.8.8.8", "192.168.1.1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if hashClient(tt.ip1) == hashClient(tt.ip2) {
				t.Errorf("%q and %q produced the same hash", tt.ip1, tt.ip2)
			}
		})
	}
}

func TestRateLimitKey_HidesClient(t *testing.T) {
	t.Parallel()

	key := rateLimitKey("admin", "203.0.113.7")

	if !strings.HasPrefix(key, "kz:ratelimit:admin:") {
		t.Errorf("key = %q, want kz:ratelimit:admin: prefix", key)
	}
	if strings.Contains(key, "203.0.113.7") {
		t.Errorf("key %q contains the raw client address", key)
	}
}

func TestImportKey(t *testing.T) {
	t.Parallel()

	if got := importKey("abc"); got != "kz:import:abc" {
		t.Errorf("importKey = %q", got)
	}
}
