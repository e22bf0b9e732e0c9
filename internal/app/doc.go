// Package app is the composition root of the btcpos terminal.
//
// # Overview
//
// Run wires configuration, logging, secret storage, the swap backend, the
// price sources and the session manager together, then hands control to the
// Bubble Tea UI until the operator quits or the context is cancelled.
//
// # Startup
//
//  1. Load ~/.config/btcpos/config.toml (BTCPOS_* variables override it)
//  2. Point the global zerolog logger at the log file
//  3. Open the secret store (file, badger or memory)
//  4. Build the session manager around the simulated swap backend
//  5. Pick the starting fragment: the link argument, else the location file
//  6. Watch the location file for links opened by other processes
//  7. Run the UI (blocks)
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()         Terminal settings
//	       ├─────> storage.Open()        Durable swap secrets
//	       ├─────> session.NewManager()  Bring-up and reuse of sessions
//	       ├─────> location.Watch()      External navigation
//	       └─────> ui.Run()              Pager and pages (blocks)
//
// # Commands
//
// BuildLink, OpenLink and ReferralStats back the non-interactive
// subcommands of cmd/btcpos. They load the same configuration as Run but
// never start the UI.
//
// # Error Handling
//
// Configuration, log file and storage failures are returned from Run. A
// location file that cannot be watched only disables external navigation.
// Session and payment failures never leave this package; the UI shows them.
package app
