package auth

import (
	"context"
	"strings"
)

// Identity is the authenticated operator behind a request. Roles are
// normalized to lower case by the authenticators and checked against
// the viewer/editor/admin ladder in rbac.go.
type Identity struct {
	Subject string
	Email   string
	Roles   []string
}

// Actor is the label recorded in the run audit trail: the operator's
// email when the identity provider supplies one, otherwise the raw
// subject.
func (i Identity) Actor() string {
	if email := strings.TrimSpace(i.Email); email != "" {
		return email
	}
	return strings.TrimSpace(i.Subject)
}

type ctxKeyIdentity struct{}

func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok
}
