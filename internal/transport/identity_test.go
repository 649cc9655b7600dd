package transport

import (
	"net/http"
	"testing"
)

func TestIdentityPool_RoundRobin(t *testing.T) {
	t.Parallel()
	pool := newIdentityPool("")
	n := len(pool.profiles)
	if n < 2 {
		t.Fatalf("Expected several default identities, got %d", n)
	}

	first := pool.Next()
	for i := 1; i < n; i++ {
		if id := pool.Next(); id.Name == first.Name {
			t.Errorf("Identity %q repeated before the pool was exhausted", id.Name)
		}
	}
	if again := pool.Next(); again.Name != first.Name {
		t.Errorf("Expected rotation to wrap to %q, got %q", first.Name, again.Name)
	}
}

func TestIdentityPool_Pinned(t *testing.T) {
	t.Parallel()
	pool := newIdentityPool("Custom/1.0")
	for i := 0; i < 3; i++ {
		id := pool.Next()
		if id.Name != "pinned" || id.UserAgent() != "Custom/1.0" {
			t.Errorf("Unexpected identity %+v", id)
		}
	}
}

func TestDefaultIdentities_Complete(t *testing.T) {
	t.Parallel()
	for _, id := range defaultIdentities() {
		for _, h := range []string{"User-Agent", "Accept", "Accept-Language", "Sec-Fetch-Mode"} {
			if id.Headers.Get(h) == "" {
				t.Errorf("Identity %s is missing %s", id.Name, h)
			}
		}
	}
}

func TestIdentity_Apply(t *testing.T) {
	t.Parallel()
	id := newIdentityPool("Agent/1").Next()
	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	req.Header.Set("Accept", "application/json")

	id.apply(req)

	if req.UserAgent() != "Agent/1" {
		t.Errorf("User-Agent = %q", req.UserAgent())
	}
	if req.Header.Get("Accept") != "application/json" {
		t.Errorf("Caller header overridden: %q", req.Header.Get("Accept"))
	}
}

func TestIdentity_WithUserAgent(t *testing.T) {
	t.Parallel()
	id := defaultIdentities()[0]
	got := id.WithUserAgent("Other/2")

	if got.UserAgent() != "Other/2" {
		t.Errorf("User-Agent = %q", got.UserAgent())
	}
	if got.Headers.Get("Sec-Ch-Ua") != "" {
		t.Error("Expected client hints removed")
	}
	if id.Headers.Get("Sec-Ch-Ua") == "" {
		t.Error("Original identity must not be modified")
	}
}
