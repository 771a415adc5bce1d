// Package local implements identity.Provider in-process: accounts live in
// the client database, sessions are signed JWTs and verification codes are
// delivered through a CodeSender.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/wardrobe/internal/client/identity"
	"github.com/dmitrijs2005/wardrobe/internal/client/models"
	"github.com/dmitrijs2005/wardrobe/internal/client/repositories/accounts"
	"github.com/dmitrijs2005/wardrobe/internal/common"
	"github.com/dmitrijs2005/wardrobe/internal/cryptox"
	"github.com/dmitrijs2005/wardrobe/internal/logging"
	"github.com/dmitrijs2005/wardrobe/internal/tokenx"
	"github.com/google/uuid"
)

const (
	sessionTokenName = "session"
	minPasswordLen   = 8

	DefaultSessionTTL = 7 * 24 * time.Hour
	DefaultCodeTTL    = 10 * time.Minute
)

// TokenStore persists the active session token between runs.
type TokenStore interface {
	GetToken(ctx context.Context, name string) (string, error)
	SaveToken(ctx context.Context, name, value string) error
	DeleteToken(ctx context.Context, name string) error
}

type Config struct {
	SessionSecret []byte
	SessionTTL    time.Duration
	CodeTTL       time.Duration
	// TestMode accepts any well-formed numeric code.
	TestMode bool
}

type Option func(*Provider)

// WithOAuthFlow registers flow under strategy (e.g. identity.StrategyGoogle).
func WithOAuthFlow(strategy string, flow identity.OAuthFlow) Option {
	return func(p *Provider) { p.flows[strategy] = flow }
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

type pendingSignUp struct {
	params   identity.SignUpParams
	salt     []byte
	verifier []byte
	code     string
	expires  time.Time
}

type pendingReset struct {
	accountID string
	email     string
	code      string
	expires   time.Time
	verified  bool
}

type session struct {
	token string
	user  identity.User
}

type Provider struct {
	accounts accounts.Repository
	tokens   TokenStore
	sender   CodeSender
	cfg      Config
	flows    map[string]identity.OAuthFlow
	now      func() time.Time
	log      logging.Logger

	mu          sync.Mutex
	status      identity.Status
	activeToken string
	created     map[string]session
	signUp      *pendingSignUp
	reset       *pendingReset
	listeners   map[int]func(identity.Status)
	nextID      int
}

var _ identity.Provider = (*Provider)(nil)

func New(accs accounts.Repository, tokens TokenStore, sender CodeSender, cfg Config, log logging.Logger, opts ...Option) *Provider {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultCodeTTL
	}
	p := &Provider{
		accounts:  accs,
		tokens:    tokens,
		sender:    sender,
		cfg:       cfg,
		flows:     make(map[string]identity.OAuthFlow),
		now:       time.Now,
		log:       log.With("module", "identity"),
		created:   make(map[string]session),
		listeners: make(map[int]func(identity.Status)),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Load(ctx context.Context) (identity.Status, error) {
	token, err := p.tokens.GetToken(ctx, sessionTokenName)
	if err != nil {
		p.setStatus(identity.Status{Loaded: true}, "")
		return p.Status(), fmt.Errorf("restore session: %w", err)
	}

	if token == "" {
		p.setStatus(identity.Status{Loaded: true}, "")
		return p.Status(), nil
	}

	claims, err := tokenx.Parse(token, p.cfg.SessionSecret)
	if err != nil {
		p.log.Info(ctx, "stored session discarded", "reason", err)
		if delErr := p.tokens.DeleteToken(ctx, sessionTokenName); delErr != nil {
			p.log.Warn(ctx, "failed to delete stale session", "error", delErr)
		}
		p.setStatus(identity.Status{Loaded: true}, "")
		return p.Status(), nil
	}

	user := userFromClaims(claims)
	p.setStatus(identity.Status{Loaded: true, SignedIn: true, User: &user}, token)
	return p.Status(), nil
}

func (p *Provider) Status() identity.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyStatus(p.status)
}

func (p *Provider) Subscribe(fn func(identity.Status)) (cancel func()) {
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

func (p *Provider) SignIn(ctx context.Context, email, password string) (identity.SignInAttempt, error) {
	acc, err := p.accounts.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return identity.SignInAttempt{}, identity.Reject("form_identifier_not_found", "Couldn't find your account.")
	}
	if err != nil {
		return identity.SignInAttempt{}, err
	}

	if !acc.HasPassword() {
		return identity.SignInAttempt{Status: identity.StatusNeedsFirstFactor}, nil
	}
	if !cryptox.CheckPassword(password, acc.PasswordSalt, acc.PasswordVerifier) {
		return identity.SignInAttempt{}, identity.Reject("form_password_incorrect", "Password is incorrect. Try again, or use another method.")
	}

	sid, err := p.createSession(acc)
	if err != nil {
		return identity.SignInAttempt{}, err
	}
	return identity.SignInAttempt{Status: identity.StatusComplete, SessionID: sid}, nil
}

func (p *Provider) SignUp(ctx context.Context, params identity.SignUpParams) error {
	params.Email = strings.TrimSpace(params.Email)
	if !strings.Contains(params.Email, "@") {
		return identity.Reject("form_param_format_invalid", "Enter a valid email address.")
	}
	if len(params.Password) < minPasswordLen {
		return identity.Reject("form_password_length_too_short", "Passwords must be 8 characters or more.")
	}

	_, err := p.accounts.GetByEmail(ctx, params.Email)
	switch {
	case err == nil:
		return identity.Reject("form_identifier_exists", "That email address is taken. Please try another.")
	case !errors.Is(err, common.ErrorNotFound):
		return err
	}

	salt, verifier := cryptox.HashPassword(params.Password)
	params.Password = ""

	p.mu.Lock()
	p.signUp = &pendingSignUp{params: params, salt: salt, verifier: verifier}
	p.mu.Unlock()

	return nil
}

func (p *Provider) PrepareEmailVerification(ctx context.Context) error {
	code, err := common.GenerateNumericCode(common.VerificationCodeLength)
	if err != nil {
		return err
	}

	p.mu.Lock()
	su := p.signUp
	if su == nil {
		p.mu.Unlock()
		return identity.Reject("sign_up_missing", "No sign up in progress.")
	}
	su.code = code
	su.expires = p.now().Add(p.cfg.CodeTTL)
	email := su.params.Email
	p.mu.Unlock()

	return p.sender.SendCode(ctx, email, PurposeEmailVerification, code)
}

func (p *Provider) AttemptEmailVerification(ctx context.Context, code string) (identity.SignUpAttempt, error) {
	p.mu.Lock()
	su := p.signUp
	var pending pendingSignUp
	if su != nil {
		pending = *su
	}
	p.mu.Unlock()

	if su == nil {
		return identity.SignUpAttempt{}, identity.Reject("sign_up_missing", "No sign up in progress.")
	}
	if err := p.checkCode(pending.code, pending.expires, code); err != nil {
		return identity.SignUpAttempt{}, err
	}

	acc := &models.Account{
		ID:               "user_" + uuid.NewString(),
		Email:            pending.params.Email,
		FirstName:        pending.params.FirstName,
		LastName:         pending.params.LastName,
		EmailVerified:    true,
		PasswordSalt:     pending.salt,
		PasswordVerifier: pending.verifier,
	}
	if err := p.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return identity.SignUpAttempt{}, identity.Reject("form_identifier_exists", "That email address is taken. Please try another.")
		}
		return identity.SignUpAttempt{}, err
	}

	p.mu.Lock()
	p.signUp = nil
	p.mu.Unlock()

	sid, err := p.createSession(acc)
	if err != nil {
		return identity.SignUpAttempt{}, err
	}
	return identity.SignUpAttempt{Status: identity.StatusComplete, SessionID: sid}, nil
}

func (p *Provider) StartOAuth(ctx context.Context, strategy string) (identity.OAuthResult, error) {
	flow, ok := p.flows[strategy]
	if !ok {
		return identity.OAuthResult{}, identity.Reject("strategy_not_supported", fmt.Sprintf("Sign in with %s is not configured.", strategy))
	}

	ext, err := flow.Authenticate(ctx)
	if err != nil {
		return identity.OAuthResult{}, err
	}
	if ext.Email == "" {
		return identity.OAuthResult{}, nil
	}
	if !ext.EmailVerified {
		return identity.OAuthResult{}, identity.Reject("oauth_email_unverified", "Your Google email address is not verified.")
	}

	acc, err := p.accounts.GetByEmail(ctx, ext.Email)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		acc = &models.Account{
			ID:               "user_" + uuid.NewString(),
			Email:            ext.Email,
			FirstName:        ext.FirstName,
			LastName:         ext.LastName,
			ImageURL:         ext.Picture,
			EmailVerified:    true,
			ExternalProvider: ext.Provider,
			ExternalSubject:  ext.Subject,
		}
		if err := p.accounts.Create(ctx, acc); err != nil {
			return identity.OAuthResult{}, err
		}
	case err != nil:
		return identity.OAuthResult{}, err
	case acc.ExternalSubject != ext.Subject || acc.ExternalProvider != ext.Provider:
		if err := p.accounts.LinkExternal(ctx, acc.ID, ext.Provider, ext.Subject); err != nil {
			return identity.OAuthResult{}, err
		}
		acc.EmailVerified = true
		if acc.ImageURL == "" {
			acc.ImageURL = ext.Picture
		}
	}

	sid, err := p.createSession(acc)
	if err != nil {
		return identity.OAuthResult{}, err
	}
	return identity.OAuthResult{CreatedSessionID: sid}, nil
}

func (p *Provider) CreateResetCode(ctx context.Context, email string) error {
	acc, err := p.accounts.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return identity.Reject("form_identifier_not_found", "Couldn't find your account.")
	}
	if err != nil {
		return err
	}

	code, err := common.GenerateNumericCode(common.VerificationCodeLength)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.reset = &pendingReset{
		accountID: acc.ID,
		email:     acc.Email,
		code:      code,
		expires:   p.now().Add(p.cfg.CodeTTL),
	}
	p.mu.Unlock()

	return p.sender.SendCode(ctx, acc.Email, PurposePasswordReset, code)
}

func (p *Provider) AttemptResetCode(ctx context.Context, code string) (identity.SignInAttempt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reset == nil {
		return identity.SignInAttempt{}, identity.Reject("reset_missing", "No password reset in progress.")
	}
	if err := p.checkCode(p.reset.code, p.reset.expires, code); err != nil {
		return identity.SignInAttempt{}, err
	}
	p.reset.verified = true
	return identity.SignInAttempt{Status: identity.StatusNeedsNewPassword}, nil
}

// ResetPassword stores the new password and, like hosted providers do,
// signs the account in with a fresh active session.
func (p *Provider) ResetPassword(ctx context.Context, password string) (identity.SignInAttempt, error) {
	p.mu.Lock()
	rs := p.reset
	p.mu.Unlock()

	if rs == nil || !rs.verified {
		return identity.SignInAttempt{}, identity.Reject("reset_not_verified", "Verify the reset code first.")
	}
	if len(password) < minPasswordLen {
		return identity.SignInAttempt{}, identity.Reject("form_password_length_too_short", "Passwords must be 8 characters or more.")
	}

	salt, verifier := cryptox.HashPassword(password)
	if err := p.accounts.UpdatePassword(ctx, rs.accountID, salt, verifier); err != nil {
		return identity.SignInAttempt{}, err
	}

	p.mu.Lock()
	p.reset = nil
	p.mu.Unlock()

	acc, err := p.accounts.GetByID(ctx, rs.accountID)
	if err != nil {
		return identity.SignInAttempt{}, err
	}
	sid, err := p.createSession(acc)
	if err != nil {
		return identity.SignInAttempt{}, err
	}
	if err := p.SetActive(ctx, sid); err != nil {
		return identity.SignInAttempt{}, err
	}
	return identity.SignInAttempt{Status: identity.StatusComplete, SessionID: sid}, nil
}

func (p *Provider) SetActive(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	s, ok := p.created[sessionID]
	if ok {
		delete(p.created, sessionID)
	}
	p.mu.Unlock()

	if !ok {
		return identity.Reject("session_not_found", "Session not found.")
	}

	if err := p.tokens.SaveToken(ctx, sessionTokenName, s.token); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	user := s.user
	p.setStatus(identity.Status{Loaded: true, SignedIn: true, User: &user}, s.token)
	return nil
}

// SignOut forgets the persisted session before clearing the in-memory one.
// When the token cannot be deleted the status is still cleared and the error
// returned, so the caller knows the session may come back on restart.
func (p *Provider) SignOut(ctx context.Context) error {
	delErr := p.tokens.DeleteToken(ctx, sessionTokenName)
	if delErr != nil {
		p.log.Error(ctx, "failed to delete persisted session", "error", delErr)
	}

	p.setStatus(identity.Status{Loaded: true}, "")

	if delErr != nil {
		return fmt.Errorf("forget session: %w", delErr)
	}
	return nil
}

func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeToken, nil
}

func (p *Provider) checkCode(expected string, expires time.Time, got string) error {
	if expected == "" {
		return identity.Reject("verification_missing", "Request a verification code first.")
	}
	if p.now().After(expires) {
		return identity.Reject("verification_expired", "This code has expired. Request a new one.")
	}
	if !common.IsNumericCode(got, common.VerificationCodeLength) {
		return identity.Reject("form_code_incorrect", "Incorrect code.")
	}
	if p.cfg.TestMode {
		return nil
	}
	if got != expected {
		return identity.Reject("form_code_incorrect", "Incorrect code.")
	}
	return nil
}

func (p *Provider) createSession(acc *models.Account) (string, error) {
	sid := "sess_" + uuid.NewString()
	user := identity.User{
		ID:            acc.ID,
		Email:         acc.Email,
		FirstName:     acc.FirstName,
		LastName:      acc.LastName,
		ImageURL:      acc.ImageURL,
		EmailVerified: acc.EmailVerified,
	}

	token, err := tokenx.Issue(tokenx.Identity{
		UserID:        user.ID,
		SessionID:     sid,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Picture:       user.ImageURL,
	}, p.cfg.SessionSecret, p.cfg.SessionTTL)
	if err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}

	p.mu.Lock()
	p.created[sid] = session{token: token, user: user}
	p.mu.Unlock()

	return sid, nil
}

func (p *Provider) setStatus(st identity.Status, token string) {
	p.mu.Lock()
	p.status = copyStatus(st)
	p.activeToken = token
	listeners := make([]func(identity.Status), 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	snapshot := copyStatus(p.status)
	p.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func userFromClaims(c *tokenx.Claims) identity.User {
	return identity.User{
		ID:            c.Subject,
		Email:         c.Email,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		ImageURL:      c.Picture,
		EmailVerified: c.EmailVerified,
	}
}

func copyStatus(st identity.Status) identity.Status {
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}
