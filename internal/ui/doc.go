// Package ui is the Bubble Tea terminal of the point of sale.
//
// # Overview
//
// The model holds the current pager.State and nothing else about page flow:
// every key press becomes a pager.Event, pager.Transition decides the next
// page, and the model performs the returned effects. Effects that block
// (session bring-up, invoice creation, waiting for settlement) run as
// tea.Cmd functions and come back as messages.
//
// # Pages
//
//   - Setup: descriptor, currency and display options; generates the
//     terminal link with a QR code and stores the form in prefs
//   - POS: keypad in fiat or sats, optional description, charge
//   - Receive: invoice QR and settlement status
//   - Error: undecodable link, with a way back to Setup
//
// # Store Notifications
//
// The model subscribes to readiness, rate and currency changes while POS
// is shown. Callbacks only poke a buffered channel; a single command waits
// on it and re-reads state.Store. Callbacks may fire on the rate refresh
// goroutine, which the model stops synchronously, so they must never block.
//
// # External Navigation
//
// When a location file is configured, fragments written to it by another
// process (btcpos open) arrive as FragmentChanged events. Writes made by
// the model itself are filtered out by the location package.
//
// # Key Bindings
//
// Global keys (quit, help, theme, activity log) are disabled while a text
// input has focus, except ctrl+c.
package ui
