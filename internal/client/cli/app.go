package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/wardrobe/internal/client/authstate"
	"github.com/dmitrijs2005/wardrobe/internal/client/client"
	"github.com/dmitrijs2005/wardrobe/internal/client/config"
	"github.com/dmitrijs2005/wardrobe/internal/client/guard"
	"github.com/dmitrijs2005/wardrobe/internal/client/identity"
	"github.com/dmitrijs2005/wardrobe/internal/client/identity/google"
	"github.com/dmitrijs2005/wardrobe/internal/client/identity/local"
	"github.com/dmitrijs2005/wardrobe/internal/client/repositories/accounts"
	"github.com/dmitrijs2005/wardrobe/internal/client/repositories/items"
	"github.com/dmitrijs2005/wardrobe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/wardrobe/internal/client/services"
	"github.com/dmitrijs2005/wardrobe/internal/client/tokencache"
	"github.com/dmitrijs2005/wardrobe/internal/cryptox"
	"github.com/dmitrijs2005/wardrobe/internal/filex"
	"github.com/dmitrijs2005/wardrobe/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config    *config.Config
	auth      services.AuthService
	inventory services.InventoryService
	store     *authstate.Store
	guard     *guard.Guard
	health    pinger
	closers   []io.Closer
	log       logging.Logger

	reader *bufio.Reader
	out    io.Writer

	mu    sync.Mutex
	Mode  Mode
	route string
}

// NewApp opens the local database and device key and wires every client
// component.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	dbPath, err := filex.EnsureParentDir(c.DatabasePath)
	if err != nil {
		return nil, err
	}
	keyPath, err := filex.EnsureParentDir(c.DeviceKeyPath)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	key, err := cryptox.LoadOrCreateKey(keyPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("device key: %w", err)
	}
	tokens := tokencache.New(metadata.NewSQLiteRepository(db), key)

	a := &App{
		config: c,
		log:    log.With("module", "cli"),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	var opts []local.Option
	if c.GoogleEnabled() {
		flow, err := google.New(ctx, google.Config{
			ClientID:     c.GoogleClientID,
			ClientSecret: c.GoogleClientSecret,
			RedirectURL:  c.GoogleRedirectURL,
			Timeout:      c.GoogleSignInTimeout,
		}, a.openURL, log)
		if err != nil {
			a.log.Warn(ctx, "google sign-in disabled", "error", err)
		} else {
			opts = append(opts, local.WithOAuthFlow(identity.StrategyGoogle, flow))
		}
	}

	provider := local.New(accounts.NewSQLiteRepository(db), tokens, local.NewLogSender(log), local.Config{
		SessionSecret: []byte(c.SessionSecret),
		TestMode:      c.IdentityTestMode,
	}, log, opts...)

	api := client.NewHTTPClient(c.APIBaseURL, provider, c.RequestTimeout)

	health, err := client.NewHealthClient(c.HealthEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("health client: %w", err)
	}

	a.store = authstate.NewStore()
	a.auth = services.NewAuthService(provider, api, a.store, log)
	a.inventory = services.NewInventoryService(api, log, services.WithCache(items.NewSQLiteRepository(db), a.cacheOwner))
	a.guard = guard.New(a.store, guard.NavigatorFunc(a.navigate), guard.WithWaiting(func() {
		fmt.Fprintln(a.out, "Loading, please wait...")
	}))
	a.health = health
	a.closers = []io.Closer{health, db}
	return a, nil
}

func (a *App) openURL(url string) error {
	_, err := fmt.Fprintf(a.out, "Open this link in your browser to continue:\n  %s\n", url)
	return err
}

func (a *App) navigate(route string) {
	a.mu.Lock()
	a.route = route
	a.mu.Unlock()
	fmt.Fprintf(a.out, "You are signed out. Use 'login', 'google' or 'register' (%s).\n", route)
}

// setMode records the connectivity mode and reports whether it changed.
func (a *App) setMode(mode Mode) bool {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info(context.Background(), "connectivity changed", "mode", string(mode))
	}
	return changed
}

// cacheOwner keys the offline inventory by the signed-in directory record.
func (a *App) cacheOwner() string {
	st := a.store.Snapshot()
	if !st.IsAuthenticated || st.User == nil {
		return ""
	}
	return st.User.RecordID
}

// clearOnSignOut drops the inventory whenever the session ends, whichever
// component ended it.
func (a *App) clearOnSignOut(ctx context.Context) (unsubscribe func()) {
	var signedIn atomic.Bool
	signedIn.Store(a.store.IsAuthenticated())
	return a.store.Subscribe(func(st authstate.State) {
		if signedIn.Swap(st.IsAuthenticated) && !st.IsAuthenticated {
			if err := a.inventory.Clear(ctx); err != nil {
				a.log.Warn(ctx, "clear inventory failed", "error", err)
			}
		}
	})
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

// shutdownGrace is how long Run waits for the command loop after ctx ends.
// A loop blocked on terminal input is abandoned.
var shutdownGrace = time.Second

// Run drives Root until the user quits or ctx is cancelled, then closes
// the App.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Root(ctx)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			a.log.Info(context.Background(), "interrupted, exiting")
		}
	}
}

func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *App) isLoggedIn() bool {
	return a.store != nil && a.store.IsAuthenticated()
}

// StartOnlineStatusWatcher probes the backend every interval and switches
// between online and offline mode.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.health.Ping(pingCtx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	if a.setMode(ModeOnline) {
		a.retryReconcile(ctx)
	}
}

// retryReconcile repeats a reconciliation that may have failed while the
// backend was unreachable.
func (a *App) retryReconcile(ctx context.Context) {
	switch a.auth.Phase() {
	case services.PhaseUnknown, services.PhaseSignedOut:
	default:
		return
	}
	if err := a.auth.Reconcile(ctx); err != nil {
		a.log.Warn(ctx, "reconcile after reconnect failed", "error", err)
	}
}
