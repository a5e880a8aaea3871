// Package identity supplies the signed-in user to the workflow services.
package identity

import (
	"context"
	"strings"

	"github.com/smallbiznis/energyscope/pkg/errs"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(NewContextProvider),
)

// Identity is the current session user.
type Identity struct {
	Email    string `json:"email"`
	SignedIn bool   `json:"signed_in"`
}

// Provider resolves the user behind a call.
type Provider interface {
	Current(ctx context.Context) (Identity, error)
}

var ErrSignedOut = errs.Forbidden("signed_out", "a signed-in user is required")

type ctxKey struct{}

// WithIdentity attaches a signed-in user to ctx. An empty email signs the user out.
func WithIdentity(ctx context.Context, email string) context.Context {
	email = normalize(email)
	return context.WithValue(ctx, ctxKey{}, Identity{Email: email, SignedIn: email != ""})
}

// ContextProvider reads the identity placed on the context by WithIdentity.
type ContextProvider struct{}

func NewContextProvider() Provider {
	return ContextProvider{}
}

func (ContextProvider) Current(ctx context.Context) (Identity, error) {
	if ctx == nil {
		return Identity{}, nil
	}
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id, nil
}

// Require returns the signed-in email or ErrSignedOut.
func Require(ctx context.Context, p Provider) (string, error) {
	id, err := p.Current(ctx)
	if err != nil {
		return "", err
	}
	if !id.SignedIn || id.Email == "" {
		return "", ErrSignedOut
	}
	return id.Email, nil
}

// Static always returns the same user. Used by the setup command and tests.
type Static Identity

func NewStatic(email string) Static {
	email = normalize(email)
	return Static{Email: email, SignedIn: email != ""}
}

func (s Static) Current(context.Context) (Identity, error) {
	return Identity(s), nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
