package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
)

func newTestService() *Service {
	return NewService("test-signing-key", "test-issuer", "test-audience")
}

func Test_MintAndValidate(t *testing.T) {
	svc := newTestService()
	actor := id.NewUserID()

	token, err := svc.Mint(actor, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, actor.String(), claims.ActorID)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.Contains(t, claims.Audience, "test-audience")
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_Validate_Rejections(t *testing.T) {
	svc := newTestService()
	actor := id.NewUserID()

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Validate("not-a-jwt")
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.Mint(actor, -time.Hour)
		require.NoError(t, err)

		_, err = svc.Validate(token)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		foreign, err := NewService("other-signing-key", "test-issuer", "test-audience").Mint(actor, time.Hour)
		require.NoError(t, err)

		_, err = svc.Validate(foreign)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
	})
}

func Test_ExtractActorID(t *testing.T) {
	svc := newTestService()
	actor := id.NewUserID()

	token, err := svc.Mint(actor, time.Hour)
	require.NoError(t, err)

	got, err := svc.ExtractActorID(token)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
}
