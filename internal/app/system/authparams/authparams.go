// internal/app/system/authparams/authparams.go

// Package authparams extracts authentication parameters from the callback
// URL the identity provider redirects to.
//
// The provider always targets one physical route, but the route may be
// wrapped by hash-based client routing, so the same parameters can arrive in
// three encodings:
//
//  1. a fragment inside the hash segment:  /cb#/auth/callback?x=1#access_token=...
//  2. a query inside the hash segment:     /cb#/auth/callback?code=...
//  3. the native query string:             /cb?code=...
//
// Resolve runs one extractor per encoding, in that priority order, and folds
// the partial results with first-non-empty-wins per field.
package authparams

import (
	"net/url"
	"strings"
)

// Params is the parameter set a callback may carry. Empty string means the
// parameter was absent from every encoding.
type Params struct {
	AccessToken      string
	RefreshToken     string
	Code             string
	TokenHash        string
	Type             string
	State            string
	ErrorDescription string
}

// merge fills each empty field of p from o. Earlier extractors win.
func (p Params) merge(o Params) Params {
	if p.AccessToken == "" {
		p.AccessToken = o.AccessToken
	}
	if p.RefreshToken == "" {
		p.RefreshToken = o.RefreshToken
	}
	if p.Code == "" {
		p.Code = o.Code
	}
	if p.TokenHash == "" {
		p.TokenHash = o.TokenHash
	}
	if p.Type == "" {
		p.Type = o.Type
	}
	if p.State == "" {
		p.State = o.State
	}
	if p.ErrorDescription == "" {
		p.ErrorDescription = o.ErrorDescription
	}
	return p
}

// IsEmpty reports whether no parameter was found in any encoding.
func (p Params) IsEmpty() bool {
	return p == Params{}
}

// HasTokenPair reports whether both implicit-flow tokens are present.
func (p Params) HasTokenPair() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

type extractor func(u *url.URL) Params

// Resolve extracts parameters from a single location snapshot, searching the
// nested-fragment, nested-query, and native-query encodings in priority
// order.
func Resolve(u *url.URL) Params {
	var out Params
	for _, ex := range []extractor{fromHashFragment, fromHashQuery, fromNativeQuery} {
		out = out.merge(ex(u))
	}
	return out
}

// fromHashFragment handles implicit-flow providers that append token
// parameters after a second '#' inside the hash route segment, e.g.
// "#/auth/callback?foo=1#access_token=...&refresh_token=...".
func fromHashFragment(u *url.URL) Params {
	frag := u.EscapedFragment()
	idx := strings.Index(frag, "#")
	if idx < 0 {
		return Params{}
	}
	return fromValues(parseQuery(frag[idx+1:]))
}

// fromHashQuery handles PKCE-flow parameters carried in a query string inside
// the hash route segment, e.g. "#/auth/callback?code=...".
func fromHashQuery(u *url.URL) Params {
	frag := u.EscapedFragment()
	// Strip a trailing nested fragment first so its params are not
	// mis-attributed to this source.
	if idx := strings.Index(frag, "#"); idx >= 0 {
		frag = frag[:idx]
	}
	qIdx := strings.Index(frag, "?")
	if qIdx < 0 {
		return Params{}
	}
	return fromValues(parseQuery(frag[qIdx+1:]))
}

// fromNativeQuery handles non-hash routing and same-origin direct links.
func fromNativeQuery(u *url.URL) Params {
	return fromValues(u.Query())
}

func fromValues(v url.Values) Params {
	return Params{
		AccessToken:      v.Get("access_token"),
		RefreshToken:     v.Get("refresh_token"),
		Code:             v.Get("code"),
		TokenHash:        v.Get("token_hash"),
		Type:             v.Get("type"),
		State:            v.Get("state"),
		ErrorDescription: v.Get("error_description"),
	}
}

// parseQuery is url.ParseQuery that swallows malformed pairs instead of
// failing the whole extraction; a redirect URL mangled by an intermediary
// should still yield whatever parameters survived.
func parseQuery(s string) url.Values {
	v, err := url.ParseQuery(s)
	if err != nil && v == nil {
		return url.Values{}
	}
	return v
}
