package services

import (
	"errors"
)

// Failure is an expected, user-facing failure of an authentication
// operation. Error returns exactly the message to show.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string { return f.Message }
func (f *Failure) Unwrap() error { return f.Err }

func fail(msg string, err error) *Failure {
	return &Failure{Message: msg, Err: err}
}

var (
	ErrUserNotFound             = errors.New("User not found. Please sign up.")
	ErrNoVerificationInProgress = errors.New("No verification in progress")
	ErrNoResetInProgress        = errors.New("No password reset in progress")
	ErrResetNotReady            = errors.New("Verify the reset code first")
	ErrOperationInProgress      = errors.New("Another operation is in progress. Please wait.")
	ErrNotReady                 = errors.New("Still loading. Please try again in a moment.")
	ErrAlreadySignedIn          = errors.New("You are already signed in")

	ErrEmailRequired    = errors.New("Email is required")
	ErrPasswordRequired = errors.New("Password is required")
	ErrPasswordTooShort = errors.New("Password must be at least 8 characters")
	ErrCodeRequired     = errors.New("Code is required")
	ErrEmailMismatch    = errors.New("Email does not match the pending reset")
)

const (
	msgSignInFailed       = "Sign in failed. Please try again."
	msgSignInIncomplete   = "Sign in could not be completed. Please try again."
	msgSignUpFailed       = "Sign up failed. Please try again."
	msgVerificationFailed = "Verification failed. Please try again."
	msgResendFailed       = "Could not resend the code. Please try again."
	msgGoogleFailed       = "Google sign in failed. Please try again."
	msgInvalidCode        = "Invalid code. Please try again."
	msgResetRequestFailed = "Failed to send reset code. Please try again."
	msgResetFailed        = "Failed to reset password. Please try again."
)

// MinPasswordLength is the shortest password accepted before any network call.
const MinPasswordLength = 8

// sentinel wraps one of the package errors so that its text is the message.
func sentinel(err error) *Failure {
	return fail(err.Error(), err)
}

func validateEmail(email string) error {
	if email == "" {
		return sentinel(ErrEmailRequired)
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return sentinel(ErrPasswordRequired)
	}
	if len(password) < MinPasswordLength {
		return sentinel(ErrPasswordTooShort)
	}
	return nil
}

// IsFailure reports whether err is an expected user-facing failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}
