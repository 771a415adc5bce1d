// Package cli provides the interactive wardrobe command-line client.
//
// It wires configuration, the local database, the identity provider, the
// authentication controller, the route guard and the inventory store, and
// runs a REPL on top of them. Typical flow: restore the previous session,
// start background reconciliation and a connectivity watcher, then execute
// user commands.
//
// Key features:
//   - register / verify / resend: password sign-up with e-mail code
//   - login / google / logout
//   - forgot / reset: password reset by e-mail code
//   - list / add / show / update / delete / favorite: inventory, behind the guard
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
