package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wardrobe/internal/client/services"
	"github.com/dmitrijs2005/wardrobe/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var (
	errPasswordMismatch = errors.New("passwords do not match")
	errMissingFields    = errors.New("please fill in all fields")
)

// prompts maps input errors to the text shown for them.
var prompts = map[error]string{
	errPasswordMismatch: "Passwords do not match",
	errMissingFields:    "Please fill in all fields",
}

// Register prompts for the account details and starts a sign-up. The
// account becomes usable after 'verify' with the e-mailed code.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	first, err := getSimpleText(a.reader, "First name", a.out)
	if err != nil {
		return err
	}
	last, err := getSimpleText(a.reader, "Last name", a.out)
	if err != nil {
		return err
	}
	if email == "" || first == "" || last == "" {
		return a.report(ctx, errMissingFields)
	}

	password, err := getPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.reader, "Confirm password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		return a.report(ctx, errPasswordMismatch)
	}

	err = a.auth.SignUp(ctx, services.SignUpInput{
		Email:     email,
		Password:  string(password),
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		return a.report(ctx, err)
	}

	fmt.Fprintf(a.out, "We sent a verification code to %s. Use 'verify' to finish.\n", email)
	return nil
}

// Verify completes a pending sign-up with the e-mailed code.
func (a *App) Verify(ctx context.Context) error {
	code, err := getSimpleText(a.reader, "Verification code", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.VerifyCode(ctx, code); err != nil {
		return a.report(ctx, err)
	}
	a.welcome()
	return nil
}

func (a *App) Resend(ctx context.Context) error {
	if err := a.auth.ResendVerificationCode(ctx); err != nil {
		return a.report(ctx, err)
	}
	fmt.Fprintln(a.out, "A new code is on its way.")
	return nil
}

// Login signs in with e-mail and password.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.SignIn(ctx, email, string(password)); err != nil {
		return a.report(ctx, err)
	}
	a.welcome()
	return nil
}

// Google runs the browser sign-in flow.
func (a *App) Google(ctx context.Context) error {
	if !a.config.GoogleEnabled() {
		fmt.Fprintln(a.out, "Google sign-in is not configured.")
		return nil
	}
	if err := a.auth.SignInWithGoogle(ctx); err != nil {
		return a.report(ctx, err)
	}
	a.welcome()
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.SignOut(ctx); err != nil {
		// The local session is gone either way.
		a.log.Warn(ctx, "sign out", "error", err)
	}
	if err := a.inventory.Clear(ctx); err != nil {
		a.log.Warn(ctx, "clear inventory cache", "error", err)
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

// Forgot starts a password reset and asks for the e-mailed code right away.
func (a *App) Forgot(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.ForgotPassword(ctx, email); err != nil {
		return a.report(ctx, err)
	}
	fmt.Fprintf(a.out, "We sent a reset code to %s.\n", email)

	code, err := getSimpleText(a.reader, "Reset code", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.VerifyResetCode(ctx, email, code); err != nil {
		return a.report(ctx, err)
	}
	fmt.Fprintln(a.out, "Code accepted. Use 'reset' to choose a new password.")
	return nil
}

// Reset sets the new password after a verified reset code. The user has to
// sign in again afterwards.
func (a *App) Reset(ctx context.Context) error {
	password, err := getPassword(a.reader, "New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.reader, "Confirm password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		return a.report(ctx, errPasswordMismatch)
	}

	if err := a.auth.ResetPasswordWithCode(ctx, string(password)); err != nil {
		return a.report(ctx, err)
	}
	fmt.Fprintln(a.out, "Password updated. Please log in with your new password.")
	return nil
}

// WhoAmI prints the cached user.
func (a *App) WhoAmI(ctx context.Context) error {
	return a.guard.Protect(func() error {
		u := a.auth.State().User
		if u == nil {
			return nil
		}
		fmt.Fprintf(a.out, "%s <%s>\n", u.DisplayName(), u.Email)
		if u.RecordID != "" {
			fmt.Fprintf(a.out, "record: %s verified: %t\n", u.RecordID, u.EmailVerified)
		}
		return nil
	})
}

func (a *App) welcome() {
	if u := a.auth.State().User; u != nil {
		fmt.Fprintf(a.out, "Welcome, %s!\n", u.DisplayName())
	}
}

// report prints expected failures and logs the rest. The error is returned
// unchanged.
func (a *App) report(ctx context.Context, err error) error {
	var f *services.Failure
	if msg, ok := prompts[err]; ok {
		fmt.Fprintln(a.out, msg)
		return err
	}
	switch {
	case errors.As(err, &f):
		fmt.Fprintln(a.out, f.Message)
	case errors.Is(err, common.ErrorValidation):
		fmt.Fprintln(a.out, err.Error())
	default:
		a.log.Error(ctx, "command failed", "error", err)
		fmt.Fprintln(a.out, "Something went wrong. Please try again.")
	}
	return err
}
