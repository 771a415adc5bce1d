// Package guard gates protected commands on the local authentication cache.
//
// The guard owns no state transitions. While the cache is loading it waits;
// once loaded it either allows the command or queues a redirect to the
// sign-in route, performed by Flush after the current dispatch returns.
package guard

import (
	"errors"
	"sync"

	"github.com/dmitrijs2005/wardrobe/internal/client/authstate"
)

// DefaultSignInRoute is where unauthenticated users are sent.
const DefaultSignInRoute = "/sign-in"

type Decision int

const (
	Wait Decision = iota
	Redirect
	Allow
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	case Allow:
		return "allow"
	}
	return "unknown"
}

var (
	ErrLoading          = errors.New("still loading")
	ErrNotAuthenticated = errors.New("please sign in first")
)

// StateSource is satisfied by *authstate.Store.
type StateSource interface {
	Snapshot() authstate.State
}

type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a plain function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

type Guard struct {
	src     StateSource
	nav     Navigator
	route   string
	waiting func()

	mu      sync.Mutex
	pending string
}

type Option func(*Guard)

func WithRedirectTo(route string) Option {
	return func(g *Guard) { g.route = route }
}

// WithWaiting sets the hook shown while the cache is loading.
func WithWaiting(fn func()) Option {
	return func(g *Guard) { g.waiting = fn }
}

func New(src StateSource, nav Navigator, opts ...Option) *Guard {
	g := &Guard{src: src, nav: nav, route: DefaultSignInRoute, waiting: func() {}}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Guard) Decide() Decision {
	st := g.src.Snapshot()
	switch {
	case st.IsLoading:
		return Wait
	case !st.IsAuthenticated:
		return Redirect
	default:
		return Allow
	}
}

// Protect runs fn when the cache allows it. Otherwise fn is not called and
// ErrLoading or ErrNotAuthenticated is returned; in the latter case a
// redirect is queued.
func (g *Guard) Protect(fn func() error) error {
	switch g.Decide() {
	case Wait:
		g.waiting()
		return ErrLoading
	case Redirect:
		g.mu.Lock()
		g.pending = g.route
		g.mu.Unlock()
		return ErrNotAuthenticated
	default:
		return fn()
	}
}

// Flush performs the queued redirect, if any, and reports whether one ran.
func (g *Guard) Flush() bool {
	g.mu.Lock()
	route := g.pending
	g.pending = ""
	g.mu.Unlock()

	if route == "" {
		return false
	}
	g.nav.Navigate(route)
	return true
}
