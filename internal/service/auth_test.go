package service

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(createTestGateway(t), "test-secret")

	op, err := auth.Register(ctx, "clerk", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, op.ID)

	_, err = auth.Register(ctx, "clerk", "other")
	assert.ErrorIs(t, err, ErrLoginTaken)

	_, err = auth.Register(ctx, " ", "x")
	assert.ErrorIs(t, err, ErrCredentialsRequired)

	got, err := auth.Authenticate(ctx, "clerk", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, op.ID, got.ID)

	_, err = auth.Authenticate(ctx, "clerk", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Authenticate(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestIssueToken(t *testing.T) {
	auth := NewAuthService(createTestGateway(t), "test-secret")

	op, err := auth.Register(context.Background(), "clerk", "s3cret")
	require.NoError(t, err)

	signed, err := auth.IssueToken(op)
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, op.ID, claims["operator_id"])
}
