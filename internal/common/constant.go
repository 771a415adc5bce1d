// Package common contains shared constants and sentinel errors used across
// the wardrobe client and the user directory service.
package common

const (
	// AuthorizationHeaderName is the HTTP header carrying the session token.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the session token in AuthorizationHeaderName.
	BearerPrefix = "Bearer "

	// VerificationCodeLength is the number of digits in e-mail and reset codes.
	VerificationCodeLength = 6
)
