package identity_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quoteforge/quoteforge/internal/identity"
)

const issuerURL = "http://localhost:8080"

func TestNewTokenIssuer_emptySecretRejected(t *testing.T) {
	_, err := identity.NewTokenIssuer(nil, issuerURL, time.Hour)
	if !errors.Is(err, identity.ErrNoSecret) {
		t.Errorf("expected ErrNoSecret, got %v", err)
	}
}

func TestIssueVerify_roundTrip(t *testing.T) {
	issuer, err := identity.NewTokenIssuer([]byte("shared-secret"), issuerURL, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, err := issuer.Issue("svc-pricing", "service")
	if err != nil {
		t.Fatal(err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.ActorID != "svc-pricing" {
		t.Errorf("actor: got %q", claims.ActorID)
	}
	if claims.Role != "service" {
		t.Errorf("role: got %q", claims.Role)
	}
	if claims.Issuer != issuerURL {
		t.Errorf("issuer: got %q", claims.Issuer)
	}
}

func TestVerify_wrongSecret(t *testing.T) {
	a, _ := identity.NewTokenIssuer([]byte("secret-a"), issuerURL, time.Hour)
	b, _ := identity.NewTokenIssuer([]byte("secret-b"), issuerURL, time.Hour)

	token, err := a.Issue("svc-pricing", "service")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.Verify(token); err == nil {
		t.Error("token signed with a different secret must not verify")
	}
}

func TestVerify_wrongIssuer(t *testing.T) {
	a, _ := identity.NewTokenIssuer([]byte("shared-secret"), "http://a.example.com", time.Hour)
	b, _ := identity.NewTokenIssuer([]byte("shared-secret"), "http://b.example.com", time.Hour)

	token, err := a.Issue("svc-pricing", "service")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.Verify(token); err == nil {
		t.Error("token from a different issuer must not verify")
	}
}

func TestVerify_expiredToken(t *testing.T) {
	issuer, _ := identity.NewTokenIssuer([]byte("shared-secret"), issuerURL, -time.Minute)

	token, err := issuer.Issue("svc-pricing", "service")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := issuer.Verify(token); err == nil {
		t.Error("expired token must not verify")
	}
}

func TestVerify_garbageToken(t *testing.T) {
	issuer, _ := identity.NewTokenIssuer([]byte("shared-secret"), issuerURL, time.Hour)

	for _, tok := range []string{"", "not-a-jwt", strings.Repeat("a.", 3)} {
		if _, err := issuer.Verify(tok); err == nil {
			t.Errorf("garbage token %q must not verify", tok)
		}
	}
}
