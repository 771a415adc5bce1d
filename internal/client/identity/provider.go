// Package identity describes the identity provider surface consumed by the
// authentication controller and normalizes the errors it returns.
package identity

import (
	"context"
)

// AttemptStatus is the next step reported by a sign-in or sign-up attempt.
type AttemptStatus string

const (
	StatusComplete          AttemptStatus = "complete"
	StatusNeedsFirstFactor  AttemptStatus = "needs_first_factor"
	StatusNeedsSecondFactor AttemptStatus = "needs_second_factor"
	StatusNeedsNewPassword  AttemptStatus = "needs_new_password"
	StatusMissingFields     AttemptStatus = "missing_requirements"
)

// StrategyGoogle is the OAuth strategy name for Google sign-in.
const StrategyGoogle = "oauth_google"

// User is the provider's view of a signed-in user.
type User struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	ImageURL      string
	EmailVerified bool
}

// Status is what the provider exposes about its session.
type Status struct {
	Loaded   bool
	SignedIn bool
	User     *User
}

// SignInAttempt is the result of a sign-in or reset step. SessionID is set
// once the attempt is complete and produced a session.
type SignInAttempt struct {
	Status    AttemptStatus
	SessionID string
}

type SignUpAttempt struct {
	Status    AttemptStatus
	SessionID string
}

type SignUpParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// OAuthResult has an empty CreatedSessionID when the flow created no session.
type OAuthResult struct {
	CreatedSessionID string
}

// Provider is the identity provider surface.
type Provider interface {
	// Load restores any persisted session and marks the provider loaded.
	Load(ctx context.Context) (Status, error)
	Status() Status
	// Subscribe registers fn for status changes and returns a cancel func.
	Subscribe(fn func(Status)) (cancel func())

	SignIn(ctx context.Context, email, password string) (SignInAttempt, error)

	SignUp(ctx context.Context, p SignUpParams) error
	PrepareEmailVerification(ctx context.Context) error
	AttemptEmailVerification(ctx context.Context, code string) (SignUpAttempt, error)

	StartOAuth(ctx context.Context, strategy string) (OAuthResult, error)

	CreateResetCode(ctx context.Context, email string) error
	AttemptResetCode(ctx context.Context, code string) (SignInAttempt, error)
	ResetPassword(ctx context.Context, password string) (SignInAttempt, error)

	SetActive(ctx context.Context, sessionID string) error
	SignOut(ctx context.Context) error

	// Token returns the bearer token of the active session, or "" if none.
	Token(ctx context.Context) (string, error)
}

// ExternalIdentity is the verified result of a third-party OAuth flow.
type ExternalIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	Picture       string
}

// OAuthFlow runs one interactive OAuth handshake.
type OAuthFlow interface {
	Authenticate(ctx context.Context) (ExternalIdentity, error)
}
