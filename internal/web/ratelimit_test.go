package web

import (
	"testing"
	"time"
)

func TestRateLimiter_Window(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := rl.allow("a"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, wait := rl.allow("a")
	if ok {
		t.Fatal("third request in the window should be refused")
	}
	if wait != time.Minute {
		t.Errorf("wait = %v, want 1m", wait)
	}

	// Other clients have their own budget.
	if ok, _ := rl.allow("b"); !ok {
		t.Error("a different ip should be allowed")
	}

	now = now.Add(40 * time.Second)
	if _, wait := rl.allow("a"); wait != 20*time.Second {
		t.Errorf("wait = %v, want 20s", wait)
	}

	now = now.Add(20 * time.Second)
	if ok, _ := rl.allow("a"); !ok {
		t.Error("request after the window should be allowed")
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(10, time.Minute)
	rl.now = func() time.Time { return now }

	rl.allow("a")
	rl.allow("b")
	if rl.size() != 2 {
		t.Fatalf("size = %d, want 2", rl.size())
	}

	now = now.Add(3 * time.Minute)
	rl.allow("c")
	if rl.size() != 1 {
		t.Errorf("size = %d, want stale visitors pruned", rl.size())
	}
}
