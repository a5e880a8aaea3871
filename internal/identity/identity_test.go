package identity

import (
	"context"
	"testing"

	"github.com/smallbiznis/energyscope/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextProvider(t *testing.T) {
	p := NewContextProvider()

	id, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.False(t, id.SignedIn)

	ctx := WithIdentity(context.Background(), "  Ann@Acme.IO ")
	id, err = p.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, Identity{Email: "ann@acme.io", SignedIn: true}, id)

	email, err := Require(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "ann@acme.io", email)

	_, err = Require(WithIdentity(ctx, ""), p)
	assert.ErrorIs(t, err, ErrSignedOut)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestStatic(t *testing.T) {
	email, err := Require(context.Background(), NewStatic("Setup@Acme.io"))
	require.NoError(t, err)
	assert.Equal(t, "setup@acme.io", email)

	_, err = Require(context.Background(), NewStatic(""))
	assert.ErrorIs(t, err, ErrSignedOut)
}
