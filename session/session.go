// Package session owns the HTTP client identity used for a contiguous run
// of requests: header set, cookie jar, and transport. Identities are
// replaced wholesale on rotation, never mutated in place.
package session

import (
	"math/rand"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

// Browser-like identities rotated across sessions. Keeping a small pool of
// current, real user agents avoids a single static fingerprint.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Session is one bound client identity. The cookie jar and headers live and
// die with the session.
type Session struct {
	ID      int
	Client  *http.Client
	headers http.Header
}

// Apply copies the session's identity headers onto a request.
func (s *Session) Apply(req *http.Request) {
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}
}

// UserAgent returns the identity's user agent string.
func (s *Session) UserAgent() string {
	return s.headers.Get("User-Agent")
}

// Manager builds sessions and decides when the current one is due for
// rotation. The rotation threshold is re-rolled uniformly in
// [rotateMin, rotateMax] each time a session is built.
type Manager struct {
	mu        sync.Mutex
	rng       *rand.Rand
	timeout   time.Duration
	referer   string
	rotateMin int
	rotateMax int
	threshold int
	created   int
	transport http.RoundTripper
}

// NewManager returns a manager producing clients with the given timeout.
func NewManager(timeout time.Duration, referer string, rotateMin, rotateMax int) *Manager {
	return NewManagerWithSource(timeout, referer, rotateMin, rotateMax, rand.NewSource(time.Now().UnixNano()))
}

// NewManagerWithSource is NewManager with a caller-provided random source.
func NewManagerWithSource(timeout time.Duration, referer string, rotateMin, rotateMax int, src rand.Source) *Manager {
	if rotateMin <= 0 {
		rotateMin = 40
	}
	if rotateMax < rotateMin {
		rotateMax = rotateMin
	}
	m := &Manager{
		rng:       rand.New(src),
		timeout:   timeout,
		referer:   referer,
		rotateMin: rotateMin,
		rotateMax: rotateMax,
	}
	m.threshold = m.rollThreshold()
	return m
}

// SetTransport overrides the transport used by new sessions. Intended for
// tests that stub the network.
func (m *Manager) SetTransport(rt http.RoundTripper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transport = rt
}

// New builds a fresh session with its own cookie jar, headers, and client,
// and re-rolls the rotation threshold.
func (m *Manager) New() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	jar, _ := cookiejar.New(nil)

	transport := m.transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   m.timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	headers := http.Header{}
	headers.Set("User-Agent", userAgents[m.rng.Intn(len(userAgents))])
	headers.Set("Referer", m.referer)
	headers.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	m.created++
	m.threshold = m.rollThreshold()

	return &Session{
		ID: m.created,
		Client: &http.Client{
			Jar:       jar,
			Timeout:   m.timeout,
			Transport: transport,
		},
		headers: headers,
	}
}

// ShouldRotate reports whether the session is due for scheduled rotation at
// the given request index. Block-triggered rotation is forced by the caller
// regardless of this check.
func (m *Manager) ShouldRotate(requestIndex int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return requestIndex > 0 && requestIndex%m.threshold == 0
}

// Created returns the number of sessions built so far.
func (m *Manager) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

func (m *Manager) rollThreshold() int {
	if m.rotateMax == m.rotateMin {
		return m.rotateMin
	}
	return m.rotateMin + m.rng.Intn(m.rotateMax-m.rotateMin+1)
}
