// Package state holds the process-wide POS session shared by the session
// manager, the rate refresher and the UI.
//
// # Overview
//
// A Store is a set of typed fields, one per session handle:
//
//	Wallet, ChainClient, SwapSession   (replaced together on wallet change)
//	PricesFetcher, CurrencyCode        (rebuilt when the currency changes)
//	ExchangeRate                       (refreshed on a timer while POS is shown)
//	Ready                              (set last, cleared first)
//
// Each Field is its own topic. There are no string keys: a subscriber to
// ExchangeRate receives a decimal.Decimal and nothing else.
//
// # Notification Semantics
//
// Set and Clear store the new value and then call every subscriber
// synchronously, in registration order, with the lock released. A callback
// may therefore read any field, including the one that triggered it.
//
//	unsubscribe := store.Ready.Subscribe(func(ready, ok bool) {
//		if ok && ready {
//			notify(sessionReadyMsg{})
//		}
//	})
//	defer unsubscribe()
//
// Registering the same function twice creates two registrations; each
// returned unsubscribe removes only its own and is safe to call repeatedly.
//
// Concurrent Set calls on one field may deliver notifications interleaved.
// Subscribers that care about the latest value should re-read it with Get.
//
// # Zero Value
//
// The zero Store is empty and ready to use:
//
//	store := &state.Store{}
//
// A Store must not be copied after first use.
package state
