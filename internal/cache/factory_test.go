package cache

import (
	"strings"
	"testing"
	"time"
)

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New("memcached", Options{Size: 10})
	if err == nil || !strings.Contains(err.Error(), "memcached") {
		t.Fatalf("Expected an unknown backend error, got %v", err)
	}
}

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New("memory", Options{Size: size, TTL: time.Minute}); err == nil {
			t.Errorf("Expected an error for size %d", size)
		}
	}
}

func TestNew_DefaultTTL(t *testing.T) {
	s, err := New("memory", Options{Size: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if s == nil {
		t.Fatal("Expected a store")
	}
}

func TestBackends(t *testing.T) {
	got := Backends()
	if len(got) < 2 || got[0] != "memory" || got[1] != "redis" {
		t.Errorf("Expected [memory redis], got %v", got)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected a panic on duplicate registration")
		}
	}()
	Register("memory", newMemoryStore)
}

func TestNew_Redis_InvalidAddress(t *testing.T) {
	_, err := New("redis", Options{
		Size:  10,
		TTL:   time.Minute,
		Redis: RedisOptions{Address: "127.0.0.1:1"},
	})
	if err == nil {
		t.Fatal("Expected an error for an unreachable Redis")
	}
}
