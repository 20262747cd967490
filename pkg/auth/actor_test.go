package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-signing-secret")

func signToken(t *testing.T, claims jwt.MapClaims, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestStaticProvider_ActorID(t *testing.T) {
	id, err := StaticProvider{ID: "user-1"}.ActorID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
}

func TestStaticProvider_EmptyIDIsNoActor(t *testing.T) {
	_, err := StaticProvider{}.ActorID(context.Background())
	assert.ErrorIs(t, err, ErrNoActor)
}

func TestJWTProvider_ResolvesSubject(t *testing.T) {
	provider := NewJWTProvider(testSecret)
	ctx := WithToken(context.Background(), signToken(t, jwt.MapClaims{"sub": "user-42"}, testSecret))

	id, err := provider.ActorID(ctx)

	require.NoError(t, err)
	assert.Equal(t, "user-42", id)
}

func TestJWTProvider_RejectsWrongSecret(t *testing.T) {
	provider := NewJWTProvider(testSecret)
	ctx := WithToken(context.Background(), signToken(t, jwt.MapClaims{"sub": "user-42"}, []byte("other-secret")))

	_, err := provider.ActorID(ctx)

	assert.Error(t, err)
}

func TestJWTProvider_RejectsMissingSubject(t *testing.T) {
	provider := NewJWTProvider(testSecret)
	ctx := WithToken(context.Background(), signToken(t, jwt.MapClaims{"aud": "mindcase"}, testSecret))

	_, err := provider.ActorID(ctx)

	assert.ErrorIs(t, err, ErrNoActor)
}

func TestJWTProvider_NoTokenIsNoActor(t *testing.T) {
	provider := NewJWTProvider(testSecret)

	_, err := provider.ActorID(context.Background())

	assert.ErrorIs(t, err, ErrNoActor)
}

func TestJWTProvider_ExplicitActorWinsOverToken(t *testing.T) {
	provider := NewJWTProvider(testSecret)
	ctx := WithToken(context.Background(), signToken(t, jwt.MapClaims{"sub": "token-user"}, testSecret))
	ctx = WithActor(ctx, "replay-user")

	id, err := provider.ActorID(ctx)

	require.NoError(t, err)
	assert.Equal(t, "replay-user", id)
}
