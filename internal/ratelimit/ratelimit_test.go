package ratelimit

import (
	"testing"
	"time"
)

func TestCheckAllowsUpToMax(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	config := Config{Window: time.Minute, Max: 3}
	for i := 0; i < 3; i++ {
		result := store.Check("1.2.3.4", config)
		if !result.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
		if want := 3 - (i + 1); result.Remaining != want {
			t.Errorf("request %d remaining = %d, want %d", i+1, result.Remaining, want)
		}
	}

	result := store.Check("1.2.3.4", config)
	if result.Allowed {
		t.Error("request over the limit allowed")
	}
	if result.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", result.Remaining)
	}
	if result.ResetAt.IsZero() {
		t.Error("reset time not set")
	}
}

func TestCheckIsolatesKeys(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	config := Config{Window: time.Minute, Max: 1}
	if !store.Check("a", config).Allowed {
		t.Fatal("first request for key a denied")
	}
	if store.Check("a", config).Allowed {
		t.Fatal("second request for key a allowed")
	}
	if !store.Check("b", config).Allowed {
		t.Error("key b affected by key a's counter")
	}
}

func TestCheckResetsAfterWindow(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	config := Config{Window: 10 * time.Millisecond, Max: 1}
	if !store.Check("k", config).Allowed {
		t.Fatal("first request denied")
	}
	if store.Check("k", config).Allowed {
		t.Fatal("second request in window allowed")
	}

	time.Sleep(15 * time.Millisecond)
	if !store.Check("k", config).Allowed {
		t.Error("request after window expiry denied")
	}
}

func TestRemoveStale(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	store.Check("old", Config{Window: time.Minute, Max: 5})
	store.entries["old"].windowStart = time.Now().Add(-time.Hour)
	store.Check("fresh", Config{Window: time.Minute, Max: 5})

	store.removeStale()
	if store.ActiveKeys() != 1 {
		t.Errorf("active keys = %d, want 1", store.ActiveKeys())
	}
}
