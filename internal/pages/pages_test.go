package pages

import (
	"context"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

func newTestCache(t *testing.T) *gocache.Cache {
	t.Helper()
	return gocache.New(time.Minute, time.Minute)
}

func TestParseAliases(t *testing.T) {
	aliases, err := ParseAliases("17841456783426236:420350114484751, ig-2:fb-2")
	if err != nil {
		t.Fatalf("ParseAliases: %v", err)
	}

	if got := aliases.CanonicalID("17841456783426236"); got != "420350114484751" {
		t.Fatalf("expected mapped id, got %s", got)
	}
	if got := aliases.CanonicalID("ig-2"); got != "fb-2" {
		t.Fatalf("expected mapped id, got %s", got)
	}
	if got := aliases.CanonicalID("unmapped"); got != "unmapped" {
		t.Fatalf("unmapped id must pass through, got %s", got)
	}
}

func TestParseAliasesEmpty(t *testing.T) {
	aliases, err := ParseAliases("")
	if err != nil {
		t.Fatalf("empty alias config must be valid: %v", err)
	}
	if got := aliases.CanonicalID("p1"); got != "p1" {
		t.Fatalf("expected identity mapping, got %s", got)
	}
}

func TestParseAliasesInvalid(t *testing.T) {
	if _, err := ParseAliases("missing-canonical"); err == nil {
		t.Fatalf("expected error for malformed pair")
	}
	if _, err := ParseAliases(":fb-1"); err == nil {
		t.Fatalf("expected error for empty alias")
	}
}

func TestStaticTokens(t *testing.T) {
	tokens := StaticTokens{"p1": "tok-1"}

	got, err := tokens.Resolve(context.Background(), "p1")
	if err != nil || got != "tok-1" {
		t.Fatalf("Resolve: got (%q, %v)", got, err)
	}

	got, err = tokens.Resolve(context.Background(), "p2")
	if err != nil || got != "" {
		t.Fatalf("unknown page must resolve to empty token, got (%q, %v)", got, err)
	}
}

type countingResolver struct {
	tokens map[string]string
	calls  int
}

func (r *countingResolver) Resolve(_ context.Context, pageID string) (string, error) {
	r.calls++
	return r.tokens[pageID], nil
}

func TestCachedTokensHitsBackendOnce(t *testing.T) {
	inner := &countingResolver{tokens: map[string]string{"p1": "tok-1"}}
	cached := &cachedTokens{inner: inner, cache: newTestCache(t)}

	for i := 0; i < 3; i++ {
		got, err := cached.Resolve(context.Background(), "p1")
		if err != nil || got != "tok-1" {
			t.Fatalf("Resolve: got (%q, %v)", got, err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one backend call, got %d", inner.calls)
	}
}

func TestCachedTokensDoesNotCacheAbsence(t *testing.T) {
	inner := &countingResolver{tokens: map[string]string{}}
	cached := &cachedTokens{inner: inner, cache: newTestCache(t)}

	if _, err := cached.Resolve(context.Background(), "p1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Token provisioned after the first miss must show up on the next read.
	inner.tokens["p1"] = "tok-1"
	got, err := cached.Resolve(context.Background(), "p1")
	if err != nil || got != "tok-1" {
		t.Fatalf("expected newly provisioned token, got (%q, %v)", got, err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected absence to be re-checked, got %d calls", inner.calls)
	}
}

func TestTokenResolverFactoryValidation(t *testing.T) {
	if _, err := NewTokenResolver(Config{Backend: "postgres"}); err == nil {
		t.Fatalf("postgres backend without DB must fail")
	}
	if _, err := NewTokenResolver(Config{Backend: "redis"}); err == nil {
		t.Fatalf("redis backend without client must fail")
	}
	if _, err := NewTokenResolver(Config{Backend: "memory", Tokens: map[string]string{"p": "t"}}); err != nil {
		t.Fatalf("memory backend must not fail: %v", err)
	}
}
