// Package tokenx issues and parses the HS256 session tokens shared by the
// local identity provider and the directory service.
package tokenx

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const Issuer = "wardrobe-identity"

// Claims carries the identity of the signed-in provider user.
// RegisteredClaims.Subject is the provider user id and ID is the session id.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	FirstName     string `json:"given_name,omitempty"`
	LastName      string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// Identity is the payload put into a new token.
type Identity struct {
	UserID        string
	SessionID     string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	Picture       string
}

func Issue(id Identity, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   id.UserID,
			ID:        id.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		FirstName:     id.FirstName,
		LastName:      id.LastName,
		Picture:       id.Picture,
	})

	return token.SignedString(secretKey)
}

// Parse validates tokenString and returns its claims. Expired tokens yield
// common.ErrTokenExpired, every other failure common.ErrInvalidToken.
func Parse(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
