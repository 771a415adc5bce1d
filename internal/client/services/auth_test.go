package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/wardrobe/internal/client/authstate"
	"github.com/dmitrijs2005/wardrobe/internal/client/client"
	"github.com/dmitrijs2005/wardrobe/internal/client/identity"
	"github.com/dmitrijs2005/wardrobe/internal/client/identity/local"
	"github.com/dmitrijs2005/wardrobe/internal/client/models"
	"github.com/dmitrijs2005/wardrobe/internal/client/repositories/accounts"
	"github.com/dmitrijs2005/wardrobe/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fake provider ----

type fakeProvider struct {
	mu        sync.Mutex
	status    identity.Status
	listeners map[int]func(identity.Status)
	nextID    int

	// restored is reported as signed in by Load.
	restored *identity.User
	loadErr  error

	signInAttempt identity.SignInAttempt
	signInErr     error
	signInEntered chan struct{}
	signInRelease chan struct{}

	signUpErr    error
	prepareErr   error
	prepareCalls int

	verifyAttempt identity.SignUpAttempt
	verifyErr     error

	oauth    identity.OAuthResult
	oauthErr error

	resetEmail       string
	resetCodeErr     error
	resetAttempt     identity.SignInAttempt
	resetAttemptErr  error
	resetPassword    identity.SignInAttempt
	resetPasswordErr error

	// sessions are created sessions waiting for SetActive.
	sessions      map[string]identity.User
	setActiveErr  error
	signOutErr    error
	signOutCalls  int
	setActiveCall int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		listeners:    map[int]func(identity.Status){},
		sessions:     map[string]identity.User{},
		resetAttempt: identity.SignInAttempt{Status: identity.StatusNeedsNewPassword},
	}
}

func (p *fakeProvider) set(st identity.Status) {
	p.mu.Lock()
	p.status = st
	ls := make([]func(identity.Status), 0, len(p.listeners))
	for _, l := range p.listeners {
		ls = append(ls, l)
	}
	p.mu.Unlock()
	for _, l := range ls {
		l(st)
	}
}

func (p *fakeProvider) session(id string, u identity.User) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[id] = u
	return id
}

func (p *fakeProvider) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *fakeProvider) Load(context.Context) (identity.Status, error) {
	st := identity.Status{Loaded: true}
	if p.restored != nil {
		u := *p.restored
		st = identity.Status{Loaded: true, SignedIn: true, User: &u}
	}
	p.set(st)
	return st, p.loadErr
}

func (p *fakeProvider) Status() identity.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *fakeProvider) Subscribe(fn func(identity.Status)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) SignIn(context.Context, string, string) (identity.SignInAttempt, error) {
	if p.signInEntered != nil {
		close(p.signInEntered)
		<-p.signInRelease
	}
	return p.signInAttempt, p.signInErr
}

func (p *fakeProvider) SignUp(context.Context, identity.SignUpParams) error { return p.signUpErr }

func (p *fakeProvider) PrepareEmailVerification(context.Context) error {
	p.prepareCalls++
	return p.prepareErr
}

func (p *fakeProvider) AttemptEmailVerification(context.Context, string) (identity.SignUpAttempt, error) {
	return p.verifyAttempt, p.verifyErr
}

func (p *fakeProvider) StartOAuth(context.Context, string) (identity.OAuthResult, error) {
	return p.oauth, p.oauthErr
}

func (p *fakeProvider) CreateResetCode(_ context.Context, email string) error {
	p.resetEmail = email
	return p.resetCodeErr
}

func (p *fakeProvider) AttemptResetCode(context.Context, string) (identity.SignInAttempt, error) {
	return p.resetAttempt, p.resetAttemptErr
}

func (p *fakeProvider) ResetPassword(ctx context.Context, _ string) (identity.SignInAttempt, error) {
	if p.resetPasswordErr != nil {
		return identity.SignInAttempt{}, p.resetPasswordErr
	}
	if p.resetPassword.SessionID != "" {
		if err := p.SetActive(ctx, p.resetPassword.SessionID); err != nil {
			return identity.SignInAttempt{}, err
		}
	}
	return p.resetPassword, nil
}

func (p *fakeProvider) SetActive(_ context.Context, sid string) error {
	p.mu.Lock()
	p.setActiveCall++
	u, ok := p.sessions[sid]
	p.mu.Unlock()
	if p.setActiveErr != nil {
		return p.setActiveErr
	}
	if !ok {
		return identity.Reject("session_not_found", "Session not found.")
	}
	p.set(identity.Status{Loaded: true, SignedIn: true, User: &u})
	return nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.signOutCalls++
	p.mu.Unlock()
	p.set(identity.Status{Loaded: true})
	return p.signOutErr
}

func (p *fakeProvider) Token(context.Context) (string, error) { return "", nil }

// ---- fake directory ----

type fakeDirectory struct {
	mu      sync.Mutex
	records map[string]models.ApplicationUser

	getErr    error
	createErr error
	verifyErr error
	oauthErr  error
	// raceOnCreate stores the record and still answers 409.
	raceOnCreate bool

	gets, creates, verifies, oauthCalls int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{records: map[string]models.ApplicationUser{}}
}

func (d *fakeDirectory) put(rec models.ApplicationUser) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[strings.ToLower(rec.Email)] = rec
}

func notFound() error {
	return &client.APIError{StatusCode: http.StatusNotFound, Body: `{"error":"user not found"}`}
}

func (d *fakeDirectory) GetUserByEmail(_ context.Context, email string) (*models.ApplicationUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gets++
	if d.getErr != nil {
		return nil, d.getErr
	}
	rec, ok := d.records[strings.ToLower(email)]
	if !ok {
		return nil, notFound()
	}
	return &rec, nil
}

func (d *fakeDirectory) CreateUser(_ context.Context, req models.CreateUserRequest) (*models.ApplicationUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.creates++
	if d.createErr != nil {
		return nil, d.createErr
	}
	key := strings.ToLower(req.Email)
	if _, ok := d.records[key]; ok {
		return nil, &client.APIError{StatusCode: http.StatusConflict, Body: "exists"}
	}
	rec := models.ApplicationUser{
		RecordID:   fmt.Sprintf("rec-%d", len(d.records)+1),
		ExternalID: req.ExternalID,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		ImageURL:   req.ImageURL,
	}
	d.records[key] = rec
	if d.raceOnCreate {
		return nil, &client.APIError{StatusCode: http.StatusConflict, Body: "exists"}
	}
	return &rec, nil
}

func (d *fakeDirectory) CreateOAuthUser(_ context.Context, req models.CreateUserRequest) (*models.ApplicationUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.oauthCalls++
	if d.oauthErr != nil {
		return nil, d.oauthErr
	}
	key := strings.ToLower(req.Email)
	rec, ok := d.records[key]
	if !ok {
		rec = models.ApplicationUser{
			RecordID:   fmt.Sprintf("rec-%d", len(d.records)+1),
			ExternalID: req.ExternalID,
			Email:      req.Email,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			ImageURL:   req.ImageURL,
		}
	}
	rec.EmailVerified = true
	d.records[key] = rec
	return &rec, nil
}

func (d *fakeDirectory) VerifyUser(_ context.Context, email string) (*models.ApplicationUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verifies++
	if d.verifyErr != nil {
		return nil, d.verifyErr
	}
	rec, ok := d.records[strings.ToLower(email)]
	if !ok {
		return nil, notFound()
	}
	rec.EmailVerified = true
	d.records[strings.ToLower(email)] = rec
	return &rec, nil
}

// ---- helpers ----

var alice = identity.User{ID: "user_1", Email: "alice@example.com", FirstName: "Alice", LastName: "Smith"}

type authFixture struct {
	p     *fakeProvider
	d     *fakeDirectory
	store *authstate.Store
	svc   AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{p: newFakeProvider(), d: newFakeDirectory(), store: authstate.NewStore()}
	f.svc = NewAuthService(f.p, f.d, f.store, logging.Discard())
	return f
}

// started runs Start with a signed-out provider.
func startedFixture(t *testing.T) *authFixture {
	t.Helper()
	f := newAuthFixture(t)
	require.NoError(t, f.svc.Start(context.Background()))
	require.Equal(t, PhaseSignedOut, f.svc.Phase())
	return f
}

func requireFailure(t *testing.T, err error, msg string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, IsFailure(err), "expected *Failure, got %T: %v", err, err)
	require.Equal(t, msg, err.Error())
}

func requireSignedOut(t *testing.T, st authstate.State) {
	t.Helper()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
}

// ---- startup reconciliation ----

func TestStart_ProviderSignedOut(t *testing.T) {
	f := newAuthFixture(t)
	require.True(t, f.store.IsLoading())

	require.NoError(t, f.svc.Start(context.Background()))

	st := f.store.Snapshot()
	requireSignedOut(t, st)
	assert.False(t, st.IsLoading)
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())
	assert.Zero(t, f.d.gets)
}

func TestStart_SignedIn_CreatesMissingRecord(t *testing.T) {
	f := newAuthFixture(t)
	f.p.restored = &alice

	require.NoError(t, f.svc.Start(context.Background()))

	st := f.store.Snapshot()
	require.True(t, st.IsAuthenticated)
	require.NotNil(t, st.User)
	assert.Equal(t, "rec-1", st.User.RecordID)
	assert.Equal(t, alice.Email, st.User.Email)
	assert.Equal(t, alice.ID, st.User.ID)
	assert.False(t, st.IsLoading)
	assert.Equal(t, 1, f.d.creates)
	assert.Equal(t, PhaseSignedIn, f.svc.Phase())
}

func TestStart_SignedIn_MergesExistingRecord(t *testing.T) {
	f := newAuthFixture(t)
	f.p.restored = &alice
	f.d.put(models.ApplicationUser{
		RecordID: "rec-9", Email: alice.Email, EmailVerified: true, ImageURL: "https://img/a.png",
	})

	require.NoError(t, f.svc.Start(context.Background()))

	u := f.store.User()
	require.NotNil(t, u)
	assert.Equal(t, "rec-9", u.RecordID)
	assert.True(t, u.EmailVerified)
	assert.Equal(t, "https://img/a.png", u.ImageURL)
	assert.Equal(t, "Alice", u.FirstName)
	assert.Zero(t, f.d.creates)
}

func TestStart_DirectoryErrorPropagates(t *testing.T) {
	f := newAuthFixture(t)
	f.p.restored = &alice
	f.d.getErr = &client.APIError{StatusCode: http.StatusInternalServerError, Body: "boom"}

	err := f.svc.Start(context.Background())
	require.Error(t, err)
	assert.False(t, IsFailure(err))
	assert.False(t, errors.Is(err, client.ErrNotFound))
	assert.Contains(t, err.Error(), "API error: boom")

	requireSignedOut(t, f.store.Snapshot())
	assert.Zero(t, f.d.creates)
	assert.NotEqual(t, PhaseSignedIn, f.svc.Phase())
}

func TestStart_DirectoryErrorSignsOutAndRecovers(t *testing.T) {
	f := newAuthFixture(t)
	f.p.restored = &alice
	f.d.getErr = &client.APIError{StatusCode: http.StatusInternalServerError, Body: "boom"}

	require.Error(t, f.svc.Start(context.Background()))
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())
	assert.False(t, f.store.IsLoading())
	requireSignedOut(t, f.store.Snapshot())

	f.d.getErr = nil
	require.NoError(t, f.svc.ForgotPassword(context.Background(), alice.Email))

	f.p.set(identity.Status{Loaded: true, SignedIn: true, User: &alice})
	require.NoError(t, f.svc.Reconcile(context.Background()))
	assert.Equal(t, PhaseSignedIn, f.svc.Phase())
	assert.True(t, f.store.IsAuthenticated())
}

func TestReconcile_MarksVerifiedProviderUser(t *testing.T) {
	f := startedFixture(t)
	bob := identity.User{ID: "user_2", Email: "bob@example.com", EmailVerified: true}
	f.p.verifyAttempt = identity.SignUpAttempt{Status: identity.StatusComplete, SessionID: f.p.session("sess_2", bob)}
	f.d.verifyErr = &client.APIError{StatusCode: http.StatusBadGateway, Body: "bad gateway"}

	require.NoError(t, f.svc.SignUp(context.Background(), SignUpInput{Email: bob.Email, Password: "longenough1"}))
	require.Error(t, f.svc.VerifyCode(context.Background(), "123456"))

	f.d.verifyErr = nil
	require.NoError(t, f.svc.Reconcile(context.Background()))

	st := f.store.Snapshot()
	require.True(t, st.IsAuthenticated)
	assert.Equal(t, "rec-1", st.User.RecordID)
	assert.True(t, st.User.EmailVerified)
	assert.Equal(t, 2, f.d.verifies)
	assert.Equal(t, PhaseSignedIn, f.svc.Phase())
}

func TestStart_CreateConflictRefetches(t *testing.T) {
	f := newAuthFixture(t)
	f.p.restored = &alice
	f.d.raceOnCreate = true

	require.NoError(t, f.svc.Start(context.Background()))

	u := f.store.User()
	require.NotNil(t, u)
	assert.Equal(t, "rec-1", u.RecordID)
	assert.Equal(t, 1, f.d.creates)
	assert.Equal(t, 2, f.d.gets)
}

func TestStart_ProviderNotLoaded(t *testing.T) {
	f := newAuthFixture(t)

	require.NoError(t, f.svc.Reconcile(context.Background()))
	assert.True(t, f.store.IsLoading())
	assert.Equal(t, PhaseUnknown, f.svc.Phase())
}

func TestReconcile_SkipsWhenConsistent(t *testing.T) {
	f := newAuthFixture(t)
	f.p.restored = &alice
	require.NoError(t, f.svc.Start(context.Background()))
	gets := f.d.gets

	require.NoError(t, f.svc.Reconcile(context.Background()))
	assert.Equal(t, gets, f.d.gets)
}

func TestReconcile_ProviderSignedOutClearsCache(t *testing.T) {
	f := newAuthFixture(t)
	f.p.restored = &alice
	require.NoError(t, f.svc.Start(context.Background()))

	f.p.set(identity.Status{Loaded: true})
	require.NoError(t, f.svc.Reconcile(context.Background()))

	requireSignedOut(t, f.store.Snapshot())
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())
}

func TestWatch_ReconcilesOnProviderChange(t *testing.T) {
	f := startedFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.svc.Watch(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return f.p.listenerCount() > 0 }, time.Second, 5*time.Millisecond)

	u := alice
	f.p.set(identity.Status{Loaded: true, SignedIn: true, User: &u})

	require.Eventually(t, func() bool { return f.store.IsAuthenticated() }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Zero(t, f.p.listenerCount())
}

// ---- sign in ----

func TestSignIn_Success(t *testing.T) {
	f := startedFixture(t)
	f.d.put(models.ApplicationUser{RecordID: "rec-7", Email: alice.Email, EmailVerified: true})
	f.p.signInAttempt = identity.SignInAttempt{Status: identity.StatusComplete, SessionID: f.p.session("sess_1", alice)}

	require.NoError(t, f.svc.SignIn(context.Background(), " alice@example.com ", "password1"))

	st := f.store.Snapshot()
	require.True(t, st.IsAuthenticated)
	assert.Equal(t, "rec-7", st.User.RecordID)
	assert.True(t, st.User.EmailVerified)
	assert.Equal(t, "Alice", st.User.FirstName)
	assert.Equal(t, PhaseSignedIn, f.svc.Phase())
}

func TestSignIn_UserNotFound(t *testing.T) {
	f := startedFixture(t)
	f.p.signInAttempt = identity.SignInAttempt{Status: identity.StatusComplete, SessionID: f.p.session("sess_1", alice)}

	err := f.svc.SignIn(context.Background(), alice.Email, "password1")

	requireFailure(t, err, "User not found. Please sign up.")
	assert.ErrorIs(t, err, ErrUserNotFound)
	requireSignedOut(t, f.store.Snapshot())
	assert.False(t, f.p.Status().SignedIn)
	assert.Equal(t, 1, f.p.signOutCalls)
	assert.Zero(t, f.d.creates)
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())
}

func TestSignIn_DirectoryFailure(t *testing.T) {
	f := startedFixture(t)
	f.p.signInAttempt = identity.SignInAttempt{Status: identity.StatusComplete, SessionID: f.p.session("sess_1", alice)}
	f.d.getErr = client.ErrUnavailable

	err := f.svc.SignIn(context.Background(), alice.Email, "password1")

	requireFailure(t, err, msgSignInFailed)
	assert.ErrorIs(t, err, client.ErrUnavailable)
	requireSignedOut(t, f.store.Snapshot())
	assert.False(t, f.p.Status().SignedIn)
}

func TestSignIn_Incomplete(t *testing.T) {
	f := startedFixture(t)
	f.p.signInAttempt = identity.SignInAttempt{Status: identity.StatusNeedsSecondFactor}

	err := f.svc.SignIn(context.Background(), alice.Email, "password1")

	requireFailure(t, err, msgSignInIncomplete)
	assert.Zero(t, f.p.setActiveCall)
	assert.Zero(t, f.d.gets)
}

func TestSignIn_ProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"structured", identity.Reject("form_password_incorrect", "Password is incorrect."), "Password is incorrect."},
		{"long message wins", &identity.APIErrors{Errors: []identity.FieldError{{Message: "short", LongMessage: "long"}}}, "long"},
		{"unstructured", errors.New("socket closed"), msgSignInFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := startedFixture(t)
			f.p.signInErr = tt.err

			err := f.svc.SignIn(context.Background(), alice.Email, "password1")

			requireFailure(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
			requireSignedOut(t, f.store.Snapshot())
		})
	}
}

func TestSignIn_Validation(t *testing.T) {
	f := startedFixture(t)

	requireFailure(t, f.svc.SignIn(context.Background(), "  ", "password1"), ErrEmailRequired.Error())
	requireFailure(t, f.svc.SignIn(context.Background(), alice.Email, ""), ErrPasswordRequired.Error())
	assert.Zero(t, f.p.setActiveCall)
}

func TestSignIn_BeforeLoad(t *testing.T) {
	f := newAuthFixture(t)

	err := f.svc.SignIn(context.Background(), alice.Email, "password1")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSignIn_AlreadySignedIn(t *testing.T) {
	f := newAuthFixture(t)
	f.p.restored = &alice
	require.NoError(t, f.svc.Start(context.Background()))

	err := f.svc.SignIn(context.Background(), alice.Email, "password1")
	assert.ErrorIs(t, err, ErrAlreadySignedIn)
}

func TestOperations_DoNotOverlap(t *testing.T) {
	f := startedFixture(t)
	f.d.put(models.ApplicationUser{RecordID: "rec-1", Email: alice.Email})
	f.p.signInAttempt = identity.SignInAttempt{Status: identity.StatusComplete, SessionID: f.p.session("sess_1", alice)}
	f.p.signInEntered = make(chan struct{})
	f.p.signInRelease = make(chan struct{})

	errc := make(chan error, 1)
	go func() { errc <- f.svc.SignIn(context.Background(), alice.Email, "password1") }()
	<-f.p.signInEntered

	err := f.svc.SignUp(context.Background(), SignUpInput{Email: "b@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrOperationInProgress)
	err = f.svc.VerifyCode(context.Background(), "000000")
	assert.ErrorIs(t, err, ErrOperationInProgress)

	close(f.p.signInRelease)
	require.NoError(t, <-errc)
	assert.True(t, f.store.IsAuthenticated())
}

// ---- sign up and email verification ----

func TestSignUpAndVerifyCode(t *testing.T) {
	f := startedFixture(t)
	bob := identity.User{ID: "user_2", Email: "bob@example.com", FirstName: "Bob", LastName: "Jones"}
	f.p.verifyAttempt = identity.SignUpAttempt{Status: identity.StatusComplete, SessionID: f.p.session("sess_2", bob)}

	require.NoError(t, f.svc.SignUp(context.Background(), SignUpInput{
		Email: bob.Email, Password: "longenough1", FirstName: "Bob", LastName: "Jones",
	}))
	assert.Equal(t, PhasePendingEmailVerification, f.svc.Phase())
	assert.Equal(t, 1, f.p.prepareCalls)
	requireSignedOut(t, f.store.Snapshot())

	require.NoError(t, f.svc.VerifyCode(context.Background(), "123456"))

	st := f.store.Snapshot()
	require.True(t, st.IsAuthenticated)
	assert.True(t, st.User.EmailVerified)
	assert.Equal(t, "rec-1", st.User.RecordID)
	assert.Equal(t, "user_2", st.User.ID)
	assert.Equal(t, PhaseSignedIn, f.svc.Phase())
	assert.Equal(t, 1, f.d.creates)
	assert.Equal(t, 1, f.d.verifies)
}

func TestVerifyCode_AcceptsExistingRecord(t *testing.T) {
	f := startedFixture(t)
	f.d.put(models.ApplicationUser{RecordID: "rec-old", Email: alice.Email})
	f.p.verifyAttempt = identity.SignUpAttempt{Status: identity.StatusComplete, SessionID: f.p.session("sess_1", alice)}

	require.NoError(t, f.svc.SignUp(context.Background(), SignUpInput{Email: alice.Email, Password: "longenough1"}))
	require.NoError(t, f.svc.VerifyCode(context.Background(), "123456"))

	u := f.store.User()
	require.NotNil(t, u)
	assert.Equal(t, "rec-old", u.RecordID)
	assert.True(t, u.EmailVerified)
	assert.Equal(t, 1, f.d.creates)
}

func TestVerifyCode_NoVerificationInProgress(t *testing.T) {
	f := startedFixture(t)
	before := f.store.Snapshot()

	err := f.svc.VerifyCode(context.Background(), "000000")

	requireFailure(t, err, "No verification in progress")
	assert.ErrorIs(t, err, ErrNoVerificationInProgress)
	assert.Equal(t, before, f.store.Snapshot())
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())
}

func TestVerifyCode_WhileSignedIn(t *testing.T) {
	f := newAuthFixture(t)
	f.p.restored = &alice
	require.NoError(t, f.svc.Start(context.Background()))
	before := f.store.Snapshot()

	err := f.svc.VerifyCode(context.Background(), "000000")

	assert.ErrorIs(t, err, ErrNoVerificationInProgress)
	assert.Equal(t, before, f.store.Snapshot())
}

func TestVerifyCode_WrongCodeStaysPending(t *testing.T) {
	f := startedFixture(t)
	f.p.verifyErr = identity.Reject("form_code_incorrect", "Incorrect code.")

	require.NoError(t, f.svc.SignUp(context.Background(), SignUpInput{Email: alice.Email, Password: "longenough1"}))
	err := f.svc.VerifyCode(context.Background(), "111111")

	requireFailure(t, err, "Incorrect code.")
	assert.Equal(t, PhasePendingEmailVerification, f.svc.Phase())
	requireSignedOut(t, f.store.Snapshot())
}

func TestSignUp_Validation(t *testing.T) {
	f := startedFixture(t)

	err := f.svc.SignUp(context.Background(), SignUpInput{Email: alice.Email, Password: "short"})
	requireFailure(t, err, "Password must be at least 8 characters")
	assert.Zero(t, f.p.prepareCalls)
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())
}

func TestSignUp_ProviderRejection(t *testing.T) {
	f := startedFixture(t)
	f.p.signUpErr = identity.Reject("form_identifier_exists", "That email address is taken.")

	err := f.svc.SignUp(context.Background(), SignUpInput{Email: alice.Email, Password: "longenough1"})

	requireFailure(t, err, "That email address is taken.")
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())

	f.p.signUpErr = errors.New("boom")
	err = f.svc.SignUp(context.Background(), SignUpInput{Email: alice.Email, Password: "longenough1"})
	requireFailure(t, err, msgSignUpFailed)
}

func TestResendVerificationCode(t *testing.T) {
	f := startedFixture(t)

	err := f.svc.ResendVerificationCode(context.Background())
	assert.ErrorIs(t, err, ErrNoVerificationInProgress)
	assert.Zero(t, f.p.prepareCalls)

	require.NoError(t, f.svc.SignUp(context.Background(), SignUpInput{Email: alice.Email, Password: "longenough1"}))
	require.NoError(t, f.svc.ResendVerificationCode(context.Background()))
	assert.Equal(t, 2, f.p.prepareCalls)
	assert.Equal(t, PhasePendingEmailVerification, f.svc.Phase())
}

// ---- google ----

func TestSignInWithGoogle_ProvisionsRecord(t *testing.T) {
	f := startedFixture(t)
	g := identity.User{ID: "user_g", Email: "g@example.com", FirstName: "Gee", ImageURL: "https://g/pic"}
	f.p.oauth = identity.OAuthResult{CreatedSessionID: f.p.session("sess_g", g)}

	require.NoError(t, f.svc.SignInWithGoogle(context.Background()))

	st := f.store.Snapshot()
	require.True(t, st.IsAuthenticated)
	assert.Equal(t, "g@example.com", st.User.Email)
	assert.Equal(t, "rec-1", st.User.RecordID)
	assert.True(t, st.User.EmailVerified)
	assert.Equal(t, "https://g/pic", st.User.ImageURL)
	assert.Equal(t, 1, f.d.oauthCalls)
	assert.Equal(t, PhaseSignedIn, f.svc.Phase())
}

func TestSignInWithGoogle_Failures(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		f := startedFixture(t)

		requireFailure(t, f.svc.SignInWithGoogle(context.Background()), msgGoogleFailed)
		assert.Zero(t, f.p.setActiveCall)
	})

	t.Run("provider error", func(t *testing.T) {
		f := startedFixture(t)
		f.p.oauthErr = identity.Reject("oauth_email_unverified", "Your Google email address is not verified.")

		requireFailure(t, f.svc.SignInWithGoogle(context.Background()), msgGoogleFailed)
	})

	t.Run("directory error", func(t *testing.T) {
		f := startedFixture(t)
		f.p.oauth = identity.OAuthResult{CreatedSessionID: f.p.session("sess_g", alice)}
		f.d.oauthErr = client.ErrUnavailable

		requireFailure(t, f.svc.SignInWithGoogle(context.Background()), msgGoogleFailed)
		requireSignedOut(t, f.store.Snapshot())
		assert.False(t, f.p.Status().SignedIn)
	})
}

// ---- sign out ----

func TestSignOut(t *testing.T) {
	f := newAuthFixture(t)
	f.p.restored = &alice
	require.NoError(t, f.svc.Start(context.Background()))
	require.True(t, f.store.IsAuthenticated())

	require.NoError(t, f.svc.SignOut(context.Background()))

	requireSignedOut(t, f.store.Snapshot())
	assert.False(t, f.p.Status().SignedIn)
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())
}

func TestSignOut_Idempotent(t *testing.T) {
	f := startedFixture(t)

	require.NoError(t, f.svc.SignOut(context.Background()))
	require.NoError(t, f.svc.SignOut(context.Background()))

	requireSignedOut(t, f.store.Snapshot())
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())
}

func TestSignOut_ProviderErrorStillClears(t *testing.T) {
	f := newAuthFixture(t)
	f.p.restored = &alice
	require.NoError(t, f.svc.Start(context.Background()))
	f.p.signOutErr = errors.New("network down")

	err := f.svc.SignOut(context.Background())

	require.Error(t, err)
	assert.False(t, IsFailure(err))
	requireSignedOut(t, f.store.Snapshot())
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())
}

// ---- password reset ----

func TestPasswordReset_ForcesSignOut(t *testing.T) {
	for _, withSession := range []bool{true, false} {
		t.Run(fmt.Sprintf("session=%v", withSession), func(t *testing.T) {
			f := startedFixture(t)
			f.p.resetPassword = identity.SignInAttempt{Status: identity.StatusComplete}
			if withSession {
				f.p.resetPassword.SessionID = f.p.session("sess_r", alice)
			}
			ctx := context.Background()

			require.NoError(t, f.svc.ForgotPassword(ctx, alice.Email))
			assert.Equal(t, PhasePendingPasswordReset, f.svc.Phase())
			assert.Equal(t, alice.Email, f.p.resetEmail)

			require.NoError(t, f.svc.VerifyResetCode(ctx, alice.Email, "123456"))
			assert.Equal(t, PhasePasswordResetReady, f.svc.Phase())

			require.NoError(t, f.svc.ResetPasswordWithCode(ctx, "newpassword1"))

			requireSignedOut(t, f.store.Snapshot())
			assert.False(t, f.p.Status().SignedIn)
			assert.Equal(t, PhaseSignedOut, f.svc.Phase())
			if withSession {
				assert.Equal(t, 1, f.p.signOutCalls)
			} else {
				assert.Zero(t, f.p.signOutCalls)
			}
		})
	}
}

func TestPasswordReset_SignOutFailureSwallowed(t *testing.T) {
	f := startedFixture(t)
	f.p.resetPassword = identity.SignInAttempt{Status: identity.StatusComplete, SessionID: f.p.session("sess_r", alice)}
	f.p.signOutErr = errors.New("network down")
	ctx := context.Background()

	require.NoError(t, f.svc.ForgotPassword(ctx, alice.Email))
	require.NoError(t, f.svc.VerifyResetCode(ctx, alice.Email, "123456"))
	require.NoError(t, f.svc.ResetPasswordWithCode(ctx, "newpassword1"))

	requireSignedOut(t, f.store.Snapshot())
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())
}

func TestForgotPassword_ProviderError(t *testing.T) {
	f := startedFixture(t)
	f.p.resetCodeErr = identity.Reject("form_identifier_not_found", "Couldn't find your account.")

	err := f.svc.ForgotPassword(context.Background(), "nobody@example.com")

	requireFailure(t, err, "Couldn't find your account.")
	assert.Equal(t, PhaseSignedOut, f.svc.Phase())
	requireSignedOut(t, f.store.Snapshot())
}

func TestVerifyResetCode_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("no reset", func(t *testing.T) {
		f := startedFixture(t)
		assert.ErrorIs(t, f.svc.VerifyResetCode(ctx, alice.Email, "123456"), ErrNoResetInProgress)
	})

	t.Run("other email", func(t *testing.T) {
		f := startedFixture(t)
		require.NoError(t, f.svc.ForgotPassword(ctx, alice.Email))
		assert.ErrorIs(t, f.svc.VerifyResetCode(ctx, "eve@example.com", "123456"), ErrEmailMismatch)
		assert.Equal(t, PhasePendingPasswordReset, f.svc.Phase())
	})

	t.Run("unexpected status", func(t *testing.T) {
		f := startedFixture(t)
		f.p.resetAttempt = identity.SignInAttempt{Status: identity.StatusNeedsFirstFactor}
		require.NoError(t, f.svc.ForgotPassword(ctx, alice.Email))

		requireFailure(t, f.svc.VerifyResetCode(ctx, alice.Email, "123456"), msgInvalidCode)
		assert.Equal(t, PhasePendingPasswordReset, f.svc.Phase())
	})

	t.Run("wrong code", func(t *testing.T) {
		f := startedFixture(t)
		f.p.resetAttemptErr = errors.New("bad")
		require.NoError(t, f.svc.ForgotPassword(ctx, alice.Email))

		requireFailure(t, f.svc.VerifyResetCode(ctx, alice.Email, "123456"), msgInvalidCode)
		assert.Equal(t, PhasePendingPasswordReset, f.svc.Phase())
	})
}

func TestResetPasswordWithCode_RequiresVerifiedCode(t *testing.T) {
	f := startedFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.ResetPasswordWithCode(ctx, "newpassword1"), ErrNoResetInProgress)

	require.NoError(t, f.svc.ForgotPassword(ctx, alice.Email))
	assert.ErrorIs(t, f.svc.ResetPasswordWithCode(ctx, "newpassword1"), ErrResetNotReady)

	require.NoError(t, f.svc.VerifyResetCode(ctx, alice.Email, "123456"))
	requireFailure(t, f.svc.ResetPasswordWithCode(ctx, "short"), ErrPasswordTooShort.Error())
	assert.Equal(t, PhasePasswordResetReady, f.svc.Phase())
}

// ---- end to end with the local provider ----

type memTokens struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memTokens) GetToken(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[name], nil
}

func (m *memTokens) SaveToken(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = value
	return nil
}

func (m *memTokens) DeleteToken(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}

func TestEndToEnd_LocalProviderTestMode(t *testing.T) {
	ctx := context.Background()
	db, err := client.InitDatabase(ctx, filepath.Join(t.TempDir(), "wardrobe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tokens := &memTokens{data: map[string]string{}}
	log := logging.Discard()
	provider := local.New(accounts.NewSQLiteRepository(db), tokens, local.NewLogSender(log), local.Config{
		SessionSecret: []byte("test-secret"),
		TestMode:      true,
	}, log)

	dir := newFakeDirectory()
	store := authstate.NewStore()
	svc := NewAuthService(provider, dir, store, log)
	require.NoError(t, svc.Start(ctx))

	require.NoError(t, svc.SignUp(ctx, SignUpInput{Email: "a@b.com", Password: "longenough1", FirstName: "A", LastName: "B"}))
	assert.Equal(t, PhasePendingEmailVerification, svc.Phase())

	require.NoError(t, svc.VerifyCode(ctx, "000000"))

	st := store.Snapshot()
	require.True(t, st.IsAuthenticated)
	assert.Equal(t, "a@b.com", st.User.Email)
	assert.True(t, st.User.EmailVerified)

	// A cold start restores the session and reconciles without a new record.
	require.NoError(t, svc.SignOut(ctx))
	requireSignedOut(t, store.Snapshot())
	require.NoError(t, svc.SignIn(ctx, "a@b.com", "longenough1"))

	fresh := authstate.NewStore()
	restarted := NewAuthService(local.New(accounts.NewSQLiteRepository(db), tokens, local.NewLogSender(log), local.Config{
		SessionSecret: []byte("test-secret"),
	}, log), dir, fresh, log)
	require.NoError(t, restarted.Start(ctx))

	assert.True(t, fresh.IsAuthenticated())
	assert.Equal(t, "a@b.com", fresh.User().Email)
	assert.Equal(t, 1, dir.creates)
}
