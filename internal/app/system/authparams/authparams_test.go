package authparams

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) failed: %v", raw, err)
	}
	return u
}

func TestResolve_NativeQuery(t *testing.T) {
	u := mustParse(t, "https://app.example.com/auth/callback?code=abc123&type=signup")

	got := Resolve(u)
	if got.Code != "abc123" {
		t.Errorf("Code: got %q, want %q", got.Code, "abc123")
	}
	if got.Type != "signup" {
		t.Errorf("Type: got %q, want %q", got.Type, "signup")
	}
	if got.AccessToken != "" || got.RefreshToken != "" {
		t.Errorf("unexpected tokens: %+v", got)
	}
}

func TestResolve_HashQuery(t *testing.T) {
	u := mustParse(t, "https://app.example.com/#/auth/callback?code=abc123&type=recovery")

	got := Resolve(u)
	if got.Code != "abc123" {
		t.Errorf("Code: got %q, want %q", got.Code, "abc123")
	}
	if got.Type != "recovery" {
		t.Errorf("Type: got %q, want %q", got.Type, "recovery")
	}
}

func TestResolve_HashFragment(t *testing.T) {
	u := mustParse(t, "https://app.example.com/#/auth/callback?x=1#access_token=tok-a&refresh_token=tok-r&type=magiclink")

	got := Resolve(u)
	if got.AccessToken != "tok-a" {
		t.Errorf("AccessToken: got %q, want %q", got.AccessToken, "tok-a")
	}
	if got.RefreshToken != "tok-r" {
		t.Errorf("RefreshToken: got %q, want %q", got.RefreshToken, "tok-r")
	}
	if got.Type != "magiclink" {
		t.Errorf("Type: got %q, want %q", got.Type, "magiclink")
	}
	if !got.HasTokenPair() {
		t.Error("HasTokenPair: got false, want true")
	}
}

// The same logical parameters must resolve identically regardless of which
// of the three encodings carried them.
func TestResolve_EncodingEquivalence(t *testing.T) {
	want := Params{Code: "c-42", Type: "invite"}

	urls := []string{
		"https://app.example.com/auth/callback?code=c-42&type=invite",
		"https://app.example.com/#/auth/callback?code=c-42&type=invite",
		"https://app.example.com/#/auth/callback?ignored=1#code=c-42&type=invite",
	}
	for _, raw := range urls {
		got := Resolve(mustParse(t, raw))
		if got != want {
			t.Errorf("Resolve(%q) = %+v, want %+v", raw, got, want)
		}
	}
}

// When the same field appears in multiple encodings, the nested fragment
// wins over the nested query, which wins over the native query.
func TestResolve_PriorityOrder(t *testing.T) {
	u := mustParse(t, "https://app.example.com/?type=native#/cb?type=hashquery#type=fragment&access_token=a&refresh_token=r")

	got := Resolve(u)
	if got.Type != "fragment" {
		t.Errorf("Type: got %q, want %q (fragment source must win)", got.Type, "fragment")
	}
}

// Fields missing from a higher-priority source are filled from lower ones.
func TestResolve_PartialMerge(t *testing.T) {
	u := mustParse(t, "https://app.example.com/?type=recovery#/cb#access_token=a&refresh_token=r")

	got := Resolve(u)
	if got.AccessToken != "a" || got.RefreshToken != "r" {
		t.Errorf("tokens: got %+v", got)
	}
	if got.Type != "recovery" {
		t.Errorf("Type: got %q, want %q (filled from native query)", got.Type, "recovery")
	}
}

func TestResolve_TokenHashAndState(t *testing.T) {
	u := mustParse(t, "https://app.example.com/auth/callback?token_hash=th-1&type=magiclink&state=st-9")

	got := Resolve(u)
	if got.TokenHash != "th-1" {
		t.Errorf("TokenHash: got %q, want %q", got.TokenHash, "th-1")
	}
	if got.State != "st-9" {
		t.Errorf("State: got %q, want %q", got.State, "st-9")
	}
}

func TestResolve_ErrorDescriptionDecoded(t *testing.T) {
	u := mustParse(t, "https://app.example.com/#/auth/callback?error_description=Link%20expired")

	got := Resolve(u)
	if got.ErrorDescription != "Link expired" {
		t.Errorf("ErrorDescription: got %q, want %q", got.ErrorDescription, "Link expired")
	}
}

func TestResolve_Empty(t *testing.T) {
	u := mustParse(t, "https://app.example.com/auth/callback")

	got := Resolve(u)
	if !got.IsEmpty() {
		t.Errorf("IsEmpty: got false for %+v", got)
	}
}

// A pair mangled by an intermediary (here: a semicolon separator, which
// url.ParseQuery rejects) must not discard the pairs that survived.
func TestResolve_MangledPairDoesNotPoisonExtraction(t *testing.T) {
	u := mustParse(t, "https://app.example.com/#/cb?legacy=1;2&code=ok")

	got := Resolve(u)
	if got.Code != "ok" {
		t.Errorf("Code: got %q, want %q", got.Code, "ok")
	}
}
