package auth

import (
	"context"
	"net/http"
	"strings"
)

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

// DevAuthenticator issues a fixed local identity so the pipeline can
// be exercised without an identity provider. The X-Ventureos-Actor
// header overrides the subject, which lets a single local instance
// simulate distinct reviewers on the approval queue.
type DevAuthenticator struct {
	identity Identity
}

func NewDevAuthenticator(cfg Config) *DevAuthenticator {
	return &DevAuthenticator{
		identity: Identity{
			Subject: cfg.DevSubject,
			Email:   cfg.DevEmail,
			Roles:   cfg.DevRoles,
		},
	}
}

func (a *DevAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	identity := a.identity
	if actor := strings.TrimSpace(r.Header.Get("X-Ventureos-Actor")); actor != "" {
		identity.Subject = actor
		identity.Email = ""
	}
	return identity, nil
}
