package auth

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestDevAuthenticatorActorOverride(t *testing.T) {
	authn := NewDevAuthenticator(Config{
		DevSubject: "dev-user",
		DevEmail:   "dev-user@example.local",
		DevRoles:   []string{"admin"},
	})

	req := httptest.NewRequest("GET", "/runs", nil)
	identity, err := authn.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.Actor() != "dev-user@example.local" {
		t.Fatalf("expected email actor, got %q", identity.Actor())
	}

	req.Header.Set("X-Ventureos-Actor", "reviewer-2")
	identity, err = authn.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("authenticate with override: %v", err)
	}
	if identity.Subject != "reviewer-2" || identity.Actor() != "reviewer-2" {
		t.Fatalf("expected override subject, got %q (actor %q)", identity.Subject, identity.Actor())
	}
	if len(identity.Roles) != 1 || identity.Roles[0] != "admin" {
		t.Fatalf("override must keep configured roles, got %v", identity.Roles)
	}
}
