// Package services contains application services for the wardrobe client.
// This file defines the authentication service: the controller that keeps the
// identity provider session, the backend user directory and the local
// authentication cache consistent.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/wardrobe/internal/client/authstate"
	"github.com/dmitrijs2005/wardrobe/internal/client/client"
	"github.com/dmitrijs2005/wardrobe/internal/client/identity"
	"github.com/dmitrijs2005/wardrobe/internal/client/models"
	"github.com/dmitrijs2005/wardrobe/internal/logging"
	"golang.org/x/sync/singleflight"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Expected failures are returned as *Failure; their Error() is the
//     message to show. Any other error is unexpected.
//   - Explicit operations do not overlap: a second call while one is
//     running fails with ErrOperationInProgress.
//   - Start and Reconcile wait for a running operation to finish.
//   - Only this service writes the authentication cache.
type AuthService interface {
	// Start loads the provider session and runs the first reconciliation.
	Start(ctx context.Context) error
	// Reconcile brings the cache in line with the current provider status.
	Reconcile(ctx context.Context) error
	// Watch reconciles after each provider status change until ctx ends.
	Watch(ctx context.Context)

	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, in SignUpInput) error
	VerifyCode(ctx context.Context, code string) error
	ResendVerificationCode(ctx context.Context) error
	SignInWithGoogle(ctx context.Context) error
	SignOut(ctx context.Context) error
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetCode(ctx context.Context, email, code string) error
	ResetPasswordWithCode(ctx context.Context, password string) error

	Phase() Phase
	State() authstate.State
}

type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type authService struct {
	provider identity.Provider
	dir      client.UserDirectory
	store    *authstate.Store
	log      logging.Logger

	// opMu serializes every write path; busy rejects overlapping explicit
	// operations instead of queueing them.
	opMu  sync.Mutex
	busy  atomic.Bool
	group singleflight.Group

	mu          sync.Mutex
	phase       Phase
	signUpEmail string
	resetEmail  string
}

// NewAuthService constructs an AuthService over the given provider,
// directory and cache.
func NewAuthService(provider identity.Provider, dir client.UserDirectory, store *authstate.Store, log logging.Logger) AuthService {
	return &authService{
		provider: provider,
		dir:      dir,
		store:    store,
		log:      log.With("module", "auth"),
	}
}

func (s *authService) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *authService) State() authstate.State {
	return s.store.Snapshot()
}

func (s *authService) Start(ctx context.Context) error {
	st, err := s.provider.Load(ctx)
	if err != nil {
		if !st.Loaded {
			return fmt.Errorf("load identity provider: %w", err)
		}
		s.log.Warn(ctx, "identity provider loaded with errors", "error", err)
	}
	return s.Reconcile(ctx)
}

// Reconcile is coalesced: concurrent callers share one run.
func (s *authService) Reconcile(ctx context.Context) error {
	_, err, _ := s.group.Do("reconcile", func() (any, error) {
		s.opMu.Lock()
		defer s.opMu.Unlock()
		return nil, s.reconcile(ctx)
	})
	return err
}

func (s *authService) reconcile(ctx context.Context) error {
	st := s.provider.Status()
	if !st.Loaded {
		return nil
	}
	defer s.store.SetLoading(false)

	if !st.SignedIn || st.User == nil {
		s.log.Debug(ctx, "provider signed out")
		s.store.SignOut()
		s.apply(ctx, evLoadedSignedOut)
		return nil
	}

	if s.consistentWith(st.User) {
		s.apply(ctx, evLoadedSignedIn)
		return nil
	}

	user := cachedFromProvider(st.User, "")
	rec, err := s.getOrCreate(ctx, user)
	if err != nil {
		// Leave Unknown; a later Reconcile can still sign in.
		s.log.Error(ctx, "directory reconciliation failed", "email", user.Email, "error", err)
		s.store.SignOut()
		s.apply(ctx, evLoadedSignedOut)
		return fmt.Errorf("reconcile %s: %w", user.Email, err)
	}

	if user.EmailVerified && !rec.EmailVerified {
		rec = s.markVerified(ctx, user.Email, rec)
	}

	s.signedIn(ctx, user.MergeDirectory(*rec), evLoadedSignedIn)
	return nil
}

// markVerified catches up a record whose provider user is already verified,
// e.g. after a sign-up whose directory verify call failed.
func (s *authService) markVerified(ctx context.Context, email string, rec *models.ApplicationUser) *models.ApplicationUser {
	verified, err := s.dir.VerifyUser(ctx, email)
	if err != nil {
		s.log.Warn(ctx, "directory verify failed", "email", email, "error", err)
		return rec
	}
	return verified
}

func (s *authService) consistentWith(u *identity.User) bool {
	cur := s.store.Snapshot()
	return cur.IsAuthenticated && cur.User != nil &&
		cur.User.ID == u.ID && cur.User.RecordID != ""
}

// getOrCreate creates the directory record only when the lookup reports
// not found. Every other lookup error is returned as is.
func (s *authService) getOrCreate(ctx context.Context, u models.CachedUser) (*models.ApplicationUser, error) {
	rec, err := s.dir.GetUserByEmail(ctx, u.Email)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, client.ErrNotFound) {
		return nil, err
	}

	s.log.Info(ctx, "creating directory record", "email", u.Email)
	rec, err = s.dir.CreateUser(ctx, createRequest(u))
	if errors.Is(err, client.ErrAlreadyExists) {
		return s.dir.GetUserByEmail(ctx, u.Email)
	}
	return rec, err
}

func (s *authService) Watch(ctx context.Context) {
	wake := make(chan struct{}, 1)
	cancel := s.provider.Subscribe(func(identity.Status) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			if err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
				s.log.Error(ctx, "background reconciliation failed", "error", err)
			}
		}
	}
}

func (s *authService) SignIn(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return sentinel(ErrPasswordRequired)
	}

	unlock, err := s.begin()
	if err != nil {
		return err
	}
	defer unlock()

	attempt, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		s.log.Info(ctx, "sign in rejected", "email", email, "error", err)
		return fail(identity.Message(err, msgSignInFailed), err)
	}
	if attempt.Status != identity.StatusComplete {
		s.log.Info(ctx, "sign in incomplete", "email", email, "status", attempt.Status)
		return fail(msgSignInIncomplete, nil)
	}
	if err := s.provider.SetActive(ctx, attempt.SessionID); err != nil {
		return fail(identity.Message(err, msgSignInFailed), err)
	}

	rec, err := s.dir.GetUserByEmail(ctx, email)
	if err != nil {
		s.abandonSession(ctx)
		if errors.Is(err, client.ErrNotFound) {
			return sentinel(ErrUserNotFound)
		}
		s.log.Error(ctx, "directory lookup failed", "email", email, "error", err)
		return fail(msgSignInFailed, err)
	}

	s.signedIn(ctx, s.activeUser(email).MergeDirectory(*rec), evSignedIn)
	return nil
}

func (s *authService) SignUp(ctx context.Context, in SignUpInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}

	unlock, err := s.begin()
	if err != nil {
		return err
	}
	defer unlock()

	err = s.provider.SignUp(ctx, identity.SignUpParams{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	})
	if err != nil {
		s.log.Info(ctx, "sign up rejected", "email", in.Email, "error", err)
		return fail(identity.Message(err, msgSignUpFailed), err)
	}
	if err := s.provider.PrepareEmailVerification(ctx); err != nil {
		s.log.Warn(ctx, "verification code request failed", "email", in.Email, "error", err)
		return fail(identity.Message(err, msgSignUpFailed), err)
	}

	s.mu.Lock()
	s.signUpEmail = in.Email
	s.mu.Unlock()
	s.apply(ctx, evSignUpStarted)
	return nil
}

func (s *authService) VerifyCode(ctx context.Context, code string) error {
	unlock, err := s.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	if s.Phase() != PhasePendingEmailVerification {
		return sentinel(ErrNoVerificationInProgress)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return sentinel(ErrCodeRequired)
	}

	attempt, err := s.provider.AttemptEmailVerification(ctx, code)
	if err != nil {
		s.log.Info(ctx, "verification rejected", "error", err)
		return fail(identity.Message(err, msgVerificationFailed), err)
	}
	if attempt.Status != identity.StatusComplete {
		return fail(msgVerificationFailed, nil)
	}
	if err := s.provider.SetActive(ctx, attempt.SessionID); err != nil {
		return fail(identity.Message(err, msgVerificationFailed), err)
	}

	s.mu.Lock()
	email := s.signUpEmail
	s.mu.Unlock()

	user := s.activeUser(email)
	rec, err := s.provisionVerified(ctx, user)
	if err != nil {
		s.log.Error(ctx, "directory provisioning failed", "email", user.Email, "error", err)
		return fail(msgVerificationFailed, err)
	}

	s.signedIn(ctx, user.MergeDirectory(*rec), evEmailVerified)
	return nil
}

// provisionVerified is the single creation point for password sign-ups.
// An existing record from an earlier partial attempt is accepted.
func (s *authService) provisionVerified(ctx context.Context, u models.CachedUser) (*models.ApplicationUser, error) {
	_, err := s.dir.CreateUser(ctx, createRequest(u))
	if err != nil && !errors.Is(err, client.ErrAlreadyExists) {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if _, err := s.dir.VerifyUser(ctx, u.Email); err != nil {
		return nil, fmt.Errorf("verify user: %w", err)
	}
	rec, err := s.dir.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return rec, nil
}

func (s *authService) ResendVerificationCode(ctx context.Context) error {
	unlock, err := s.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	if s.Phase() != PhasePendingEmailVerification {
		return sentinel(ErrNoVerificationInProgress)
	}
	if err := s.provider.PrepareEmailVerification(ctx); err != nil {
		return fail(identity.Message(err, msgResendFailed), err)
	}
	return nil
}

func (s *authService) SignInWithGoogle(ctx context.Context) error {
	unlock, err := s.begin()
	if err != nil {
		return err
	}
	defer unlock()

	res, err := s.provider.StartOAuth(ctx, identity.StrategyGoogle)
	if err != nil {
		s.log.Warn(ctx, "oauth failed", "error", err)
		return fail(msgGoogleFailed, err)
	}
	if res.CreatedSessionID == "" {
		return fail(msgGoogleFailed, nil)
	}
	if err := s.provider.SetActive(ctx, res.CreatedSessionID); err != nil {
		return fail(msgGoogleFailed, err)
	}

	user := s.activeUser("")
	rec, err := s.dir.CreateOAuthUser(ctx, createRequest(user))
	if err != nil {
		s.log.Error(ctx, "oauth directory provisioning failed", "email", user.Email, "error", err)
		s.abandonSession(ctx)
		return fail(msgGoogleFailed, err)
	}

	s.signedIn(ctx, user.MergeDirectory(*rec), evSignedIn)
	return nil
}

// SignOut always leaves the cache cleared. A provider error is returned
// after the cache is cleared.
func (s *authService) SignOut(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	err := s.provider.SignOut(ctx)
	s.signedOut(ctx)
	if err != nil {
		s.log.Error(ctx, "provider sign out failed", "error", err)
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	unlock, err := s.begin()
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.provider.CreateResetCode(ctx, email); err != nil {
		s.log.Info(ctx, "reset code request rejected", "email", email, "error", err)
		return fail(identity.Message(err, msgResetRequestFailed), err)
	}

	s.mu.Lock()
	s.resetEmail = email
	s.mu.Unlock()
	s.apply(ctx, evResetRequested)
	return nil
}

func (s *authService) VerifyResetCode(ctx context.Context, email, code string) error {
	unlock, err := s.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	phase, pending := s.phase, s.resetEmail
	s.mu.Unlock()

	if phase != PhasePendingPasswordReset {
		return sentinel(ErrNoResetInProgress)
	}
	if !strings.EqualFold(strings.TrimSpace(email), pending) {
		return sentinel(ErrEmailMismatch)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return sentinel(ErrCodeRequired)
	}

	attempt, err := s.provider.AttemptResetCode(ctx, code)
	if err != nil {
		return fail(identity.Message(err, msgInvalidCode), err)
	}
	if attempt.Status != identity.StatusNeedsNewPassword {
		s.log.Info(ctx, "unexpected reset status", "status", attempt.Status)
		return fail(msgInvalidCode, nil)
	}

	s.apply(ctx, evResetCodeVerified)
	return nil
}

// ResetPasswordWithCode sets the new password and leaves the user signed
// out, even when the provider created a session for the reset.
func (s *authService) ResetPasswordWithCode(ctx context.Context, password string) error {
	unlock, err := s.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	switch s.Phase() {
	case PhasePasswordResetReady:
	case PhasePendingPasswordReset:
		return sentinel(ErrResetNotReady)
	default:
		return sentinel(ErrNoResetInProgress)
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	attempt, err := s.provider.ResetPassword(ctx, password)
	if err != nil {
		return fail(identity.Message(err, msgResetFailed), err)
	}
	if attempt.Status != identity.StatusComplete {
		return fail(msgResetFailed, nil)
	}

	if attempt.SessionID != "" || s.provider.Status().SignedIn {
		if err := s.provider.SignOut(ctx); err != nil {
			s.log.Warn(ctx, "sign out after password reset failed", "error", err)
		}
	}

	s.store.SignOut()
	s.mu.Lock()
	s.resetEmail = ""
	s.mu.Unlock()
	s.apply(ctx, evPasswordReset)
	return nil
}

// acquire claims the in-flight slot and the write lock.
func (s *authService) acquire() (func(), error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, sentinel(ErrOperationInProgress)
	}
	s.opMu.Lock()
	return func() {
		s.opMu.Unlock()
		s.busy.Store(false)
	}, nil
}

// begin is acquire for entry operations: the provider must have loaded
// and nobody may be signed in.
func (s *authService) begin() (func(), error) {
	unlock, err := s.acquire()
	if err != nil {
		return nil, err
	}

	switch s.Phase() {
	case PhaseUnknown:
		unlock()
		return nil, sentinel(ErrNotReady)
	case PhaseSignedIn:
		unlock()
		return nil, sentinel(ErrAlreadySignedIn)
	}
	return unlock, nil
}

// abandonSession signs out a session activated by an operation that then
// failed, so no background reconciliation picks it up.
func (s *authService) abandonSession(ctx context.Context) {
	if err := s.provider.SignOut(ctx); err != nil {
		s.log.Warn(ctx, "failed to sign out abandoned session", "error", err)
	}
}

// activeUser is the provider's current user as a cache entry. email is
// used when the provider does not report one.
func (s *authService) activeUser(email string) models.CachedUser {
	return cachedFromProvider(s.provider.Status().User, email)
}

func (s *authService) signedIn(ctx context.Context, u models.CachedUser, ev event) {
	s.store.SignIn(u)
	s.mu.Lock()
	s.signUpEmail, s.resetEmail = "", ""
	s.mu.Unlock()
	s.apply(ctx, ev)
	s.log.Info(ctx, "signed in", "email", u.Email, "record", u.RecordID)
}

func (s *authService) signedOut(ctx context.Context) {
	s.store.SignOut()
	s.mu.Lock()
	s.signUpEmail, s.resetEmail = "", ""
	s.mu.Unlock()
	s.apply(ctx, evSignedOut)
}

func (s *authService) apply(ctx context.Context, ev event) {
	s.mu.Lock()
	from := s.phase
	to, ok := transition(from, ev)
	if ok {
		s.phase = to
	}
	s.mu.Unlock()

	if !ok {
		s.log.Warn(ctx, "phase transition rejected", "phase", from, "event", ev)
		return
	}
	if to != from {
		s.log.Debug(ctx, "phase changed", "from", from, "to", to, "event", ev)
	}
}

func cachedFromProvider(u *identity.User, email string) models.CachedUser {
	if u == nil {
		return models.CachedUser{Email: email}
	}
	c := models.CachedUser{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		ImageURL:      u.ImageURL,
		EmailVerified: u.EmailVerified,
	}
	if c.Email == "" {
		c.Email = email
	}
	return c
}

func createRequest(u models.CachedUser) models.CreateUserRequest {
	return models.CreateUserRequest{
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		ExternalID: u.ID,
		ImageURL:   u.ImageURL,
	}
}
