// Package timeouts provides centralized timeout values for handler and
// auth-flow operations.
//
// The general-purpose values (Ping/Short/Medium/Long) bound database and
// provider I/O in handlers via context.WithTimeout. The auth-flow values are
// the callback dispatcher's policy: SessionInstall and SessionVerify bound
// the two provider calls that have been observed to hang on transient
// network/lock conditions, and Dispatch bounds the whole callback
// reconciliation independent of the per-call limits.
//
// Timeouts can be configured at startup with Configure or
// ConfigureFromEnv. Unconfigured values keep their defaults.
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second

	DefaultSessionInstall = 10 * time.Second
	DefaultSessionVerify  = 5 * time.Second
	DefaultDispatch       = 15 * time.Second
)

// mu protects all timeout values from concurrent access.
var mu sync.RWMutex

var (
	ping   = DefaultPing
	short  = DefaultShort
	medium = DefaultMedium
	long   = DefaultLong

	sessionInstall = DefaultSessionInstall
	sessionVerify  = DefaultSessionVerify
	dispatch       = DefaultDispatch
)

// Ping returns the timeout for health checks and connectivity verification.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Short returns the timeout for simple operations like single-document reads.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Medium returns the timeout for moderate operations like list queries.
func Medium() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return medium
}

// Long returns the timeout for complex operations touching multiple
// collections (ownership transfers, merges).
func Long() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return long
}

// SessionInstall bounds the provider call that installs an implicit-flow
// token pair.
func SessionInstall() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return sessionInstall
}

// SessionVerify bounds the provider call that re-verifies a session exists
// after an install or exchange.
func SessionVerify() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return sessionVerify
}

// Dispatch bounds the whole auth callback reconciliation from entering the
// resolving state to a terminal state.
func Dispatch() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return dispatch
}

// Config holds timeout configuration values. Zero values are ignored
// (defaults are kept).
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration

	SessionInstall time.Duration
	SessionVerify  time.Duration
	Dispatch       time.Duration
}

// Configure sets custom timeout values. Zero values in the config are
// ignored. Call during application startup before handlers are registered.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Short > 0 {
		short = cfg.Short
	}
	if cfg.Medium > 0 {
		medium = cfg.Medium
	}
	if cfg.Long > 0 {
		long = cfg.Long
	}
	if cfg.SessionInstall > 0 {
		sessionInstall = cfg.SessionInstall
	}
	if cfg.SessionVerify > 0 {
		sessionVerify = cfg.SessionVerify
	}
	if cfg.Dispatch > 0 {
		dispatch = cfg.Dispatch
	}
}

// Reset restores all timeouts to their default values. Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	short = DefaultShort
	medium = DefaultMedium
	long = DefaultLong
	sessionInstall = DefaultSessionInstall
	sessionVerify = DefaultSessionVerify
	dispatch = DefaultDispatch
}

// ConfigureFromEnv reads timeout configuration from environment variables:
// TIMEOUT_PING, TIMEOUT_SHORT, TIMEOUT_MEDIUM, TIMEOUT_LONG,
// TIMEOUT_SESSION_INSTALL, TIMEOUT_SESSION_VERIFY, TIMEOUT_DISPATCH.
// Returns the number of timeouts successfully configured.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()
	configured := 0

	set := func(envName string, dst *time.Duration) {
		if v := os.Getenv(envName); v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				*dst = d
				configured++
			}
		}
	}

	set("TIMEOUT_PING", &ping)
	set("TIMEOUT_SHORT", &short)
	set("TIMEOUT_MEDIUM", &medium)
	set("TIMEOUT_LONG", &long)
	set("TIMEOUT_SESSION_INSTALL", &sessionInstall)
	set("TIMEOUT_SESSION_VERIFY", &sessionVerify)
	set("TIMEOUT_DISPATCH", &dispatch)

	return configured
}

// Current returns the current timeout configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:           ping,
		Short:          short,
		Medium:         medium,
		Long:           long,
		SessionInstall: sessionInstall,
		SessionVerify:  sessionVerify,
		Dispatch:       dispatch,
	}
}

// WithTimeout creates a context with timeout and returns a cancel function
// that logs a warning if the deadline was exceeded.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
