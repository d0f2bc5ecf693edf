package session

import (
	"math/rand"
	"net/http"
	"testing"
	"time"
)

func newTestManager(seed int64) *Manager {
	return NewManagerWithSource(10*time.Second, "https://example.test/", 40, 60, rand.NewSource(seed))
}

func TestNewSessionIdentity(t *testing.T) {
	m := newTestManager(1)
	s := m.New()

	if s.Client == nil || s.Client.Jar == nil {
		t.Fatalf("session must carry a client with a cookie jar")
	}
	if s.UserAgent() == "" {
		t.Fatalf("session must set a user agent")
	}

	req, err := http.NewRequest(http.MethodGet, "https://example.test/products/1", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	s.Apply(req)
	if req.Header.Get("Referer") != "https://example.test/" {
		t.Fatalf("referer = %q, want manager referer", req.Header.Get("Referer"))
	}
	if req.Header.Get("Accept-Language") == "" {
		t.Fatalf("accept-language must be set")
	}
}

func TestRotationDiscardsIdentity(t *testing.T) {
	m := newTestManager(2)
	first := m.New()
	second := m.New()

	if first.Client == second.Client {
		t.Fatalf("rotation must build a new client")
	}
	if first.Client.Jar == second.Client.Jar {
		t.Fatalf("rotation must build a new cookie jar")
	}
	if second.ID != first.ID+1 {
		t.Fatalf("session IDs = %d, %d; want consecutive", first.ID, second.ID)
	}
	if m.Created() != 2 {
		t.Fatalf("created = %d, want 2", m.Created())
	}
}

func TestShouldRotateThresholdRange(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		m := newTestManager(seed)
		m.New()

		if m.ShouldRotate(0) {
			t.Fatalf("seed %d: index 0 must never trigger rotation", seed)
		}

		first := 0
		for i := 1; i <= 60; i++ {
			if m.ShouldRotate(i) {
				first = i
				break
			}
		}
		if first < 40 || first > 60 {
			t.Fatalf("seed %d: first rotation at index %d, want within [40, 60]", seed, first)
		}
	}
}

func TestThresholdRerolledPerSession(t *testing.T) {
	m := newTestManager(3)

	seen := map[int]bool{}
	for i := 0; i < 50; i++ {
		m.New()
		seen[m.threshold] = true
	}
	if len(seen) < 2 {
		t.Fatalf("threshold should vary across rotations, saw only %v", seen)
	}
	for threshold := range seen {
		if threshold < 40 || threshold > 60 {
			t.Fatalf("threshold %d outside [40, 60]", threshold)
		}
	}
}
