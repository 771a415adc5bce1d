package models

import "time"

// Account is a local identity provider account. Password accounts carry a
// salt/verifier pair; OAuth accounts carry the external provider subject.
type Account struct {
	ID               string
	Email            string
	FirstName        string
	LastName         string
	ImageURL         string
	EmailVerified    bool
	PasswordSalt     []byte
	PasswordVerifier []byte
	ExternalProvider string
	ExternalSubject  string
	CreatedAt        time.Time
}

// HasPassword reports whether the account can sign in with a password.
func (a Account) HasPassword() bool {
	return len(a.PasswordVerifier) > 0
}
