package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowWithinLimit(t *testing.T) {
	l := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("fourth request should be blocked")
	}

	// A different key has its own window.
	if !l.Allow("10.0.0.2") {
		t.Error("different key should be allowed")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := New(1, time.Minute)

	if !l.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("second request should be blocked")
	}
	l.Reset("k")
	if !l.Allow("k") {
		t.Error("request after reset should be allowed")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"remote addr with port", "192.0.2.1:4321", "", "", "192.0.2.1"},
		{"x-forwarded-for wins", "192.0.2.1:4321", "203.0.113.7, 10.0.0.1", "", "203.0.113.7"},
		{"x-real-ip fallback", "192.0.2.1:4321", "", "203.0.113.8", "203.0.113.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/login/guest", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGuestLimiter_Check(t *testing.T) {
	gl := NewGuestLimiterWithConfig(2, time.Minute)

	r := httptest.NewRequest("POST", "/login/guest", nil)
	r.RemoteAddr = "192.0.2.9:1234"

	for i := 0; i < 2; i++ {
		if ok, _ := gl.Check(r); !ok {
			t.Fatalf("creation %d should be allowed", i+1)
		}
	}
	ok, reason := gl.Check(r)
	if ok {
		t.Error("third creation should be blocked")
	}
	if reason == "" {
		t.Error("blocked check should carry a reason")
	}
}
