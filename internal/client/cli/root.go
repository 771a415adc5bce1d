package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/wardrobe/internal/client/services"
)

func (a *App) getStatus() string {
	var parts []string
	switch a.auth.Phase() {
	case services.PhaseSignedIn:
		if u := a.store.User(); u != nil {
			parts = append(parts, u.Email)
		}
	case services.PhasePendingEmailVerification:
		parts = append(parts, "verify")
	case services.PhasePendingPasswordReset, services.PhasePasswordResetReady:
		parts = append(parts, "reset")
	case services.PhaseUnknown:
		parts = append(parts, "loading")
	}
	if m := a.mode(); m != "" {
		parts = append(parts, string(m))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// afterDispatch performs a redirect queued by the route guard.
func (a *App) afterDispatch() {
	a.guard.Flush()
}

// Root restores the previous session, starts the background watchers and
// runs the command loop until the user quits.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to Wardrobe CLI (type 'help' for commands)")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.auth.Start(ctx); err != nil {
		a.log.Error(ctx, "session restore failed", "error", err)
	}
	if u := a.store.User(); u != nil {
		fmt.Fprintf(a.out, "Signed in as %s\n", u.DisplayName())
	}

	defer a.clearOnSignOut(ctx)()
	go a.auth.Watch(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}
