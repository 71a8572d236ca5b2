// internal/app/system/sanitize/sanitize.go

// Package sanitize prepares provider-originated text for display. Provider
// error messages arrive URL-encoded and are not trusted: they may embed
// markup or internal detail that must never reach a page verbatim.
package sanitize

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const maxMessageLen = 200

// GenericAuthError replaces messages that sanitize away to nothing.
const GenericAuthError = "Sign-in failed. Please try again."

var strict = bluemonday.StrictPolicy()

// ProviderError decodes and sanitizes a provider error message for display.
// Markup is stripped, '+' and percent-encoding are undone, whitespace is
// collapsed, and overlong messages are truncated. An empty or fully
// stripped message falls back to a generic one.
func ProviderError(raw string) string {
	if raw == "" {
		return GenericAuthError
	}

	decoded := raw
	if d, err := url.QueryUnescape(raw); err == nil {
		decoded = d
	}

	clean := strict.Sanitize(decoded)
	clean = strings.Join(strings.Fields(clean), " ")

	if clean == "" {
		return GenericAuthError
	}
	if len(clean) > maxMessageLen {
		clean = clean[:maxMessageLen] + "…"
	}
	return clean
}
