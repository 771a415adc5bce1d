package tokenx

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	id := Identity{
		UserID:        "user_123",
		SessionID:     "sess_1",
		Email:         "ada@example.com",
		EmailVerified: true,
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Picture:       "https://img/ada.png",
	}

	tok, err := Issue(id, secret, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "user_123", claims.Subject)
	assert.Equal(t, "sess_1", claims.ID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, "Ada", claims.FirstName)
	assert.Equal(t, "Lovelace", claims.LastName)
	assert.Equal(t, "https://img/ada.png", claims.Picture)
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	tok, err := Issue(Identity{UserID: "u1"}, []byte("secret"), -time.Second)
	require.NoError(t, err)

	_, err = Parse(tok, []byte("secret"))
	require.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestParse_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := Issue(Identity{UserID: "u2"}, []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	_, err = Parse(tok, []byte("wrong-secret"))
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParse_Garbage(t *testing.T) {
	t.Parallel()

	_, err := Parse("not-a-jwt", []byte("s"))
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParse_RejectsForeignIssuerAndEmptySubject(t *testing.T) {
	t.Parallel()
	secret := []byte("s")

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", Subject: "u"},
	})
	s, err := foreign.SignedString(secret)
	require.NoError(t, err)
	_, err = Parse(s, secret)
	require.ErrorIs(t, err, common.ErrInvalidToken)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer},
	})
	s, err = noSub.SignedString(secret)
	require.NoError(t, err)
	_, err = Parse(s, secret)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}
