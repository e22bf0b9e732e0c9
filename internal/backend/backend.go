// Package backend declares the collaborators the POS core talks to: the chain
// client, the wallet, the swap session and the price fetcher.
//
// The interfaces are deliberately narrow. Descriptor parsing, address
// derivation and the swap protocol live behind them; the core only decides
// when to build, reuse or discard the handles.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNetworkMismatch is returned when a descriptor belongs to a different
// network than the terminal is configured for.
var ErrNetworkMismatch = errors.New("descriptor does not match the configured network")

// Network names the chain the terminal settles on.
type Network string

const (
	NetworkLiquid        Network = "liquid"
	NetworkLiquidTestnet Network = "liquidtestnet"
	NetworkRegtest       Network = "regtest"
)

// ParseNetwork accepts a network name case-insensitively.
func ParseNetwork(s string) (Network, error) {
	switch n := Network(strings.ToLower(strings.TrimSpace(s))); n {
	case NetworkLiquid, NetworkLiquidTestnet, NetworkRegtest:
		return n, nil
	case "":
		return NetworkLiquid, nil
	default:
		return "", fmt.Errorf("unknown network %q", s)
	}
}

// Mainnet reports whether n settles real funds.
func (n Network) Mainnet() bool { return n == NetworkLiquid }

// Update is the result of a chain scan, applied to a wallet.
type Update struct {
	Tip     uint32
	Payload []byte
}

// ChainClient scans the chain for a wallet's history.
type ChainClient interface {
	FullScan(ctx context.Context, w Wallet) (Update, error)
}

// Wallet is a watch-only wallet built from a descriptor.
type Wallet interface {
	// Identifier is derived from the descriptor and decides whether two
	// configurations refer to the same wallet.
	Identifier() string
	Network() Network
	ApplyUpdate(u Update) error
	// DeriveAddress returns the next unused receive address.
	DeriveAddress() (string, error)
}

// SwapSessionBuilder configures a swap session before it connects.
type SwapSessionBuilder interface {
	WithSecret(secret string) SwapSessionBuilder
	WithReferral(tag string) SwapSessionBuilder
	Build(ctx context.Context) (SwapSession, error)
}

// SwapSession creates reverse-swap invoices that pay out to the wallet.
type SwapSession interface {
	CreateInvoice(ctx context.Context, amountSats int64, description, claimAddress string) (Invoice, error)
}

// Invoice is an outstanding swap. AwaitCompletion blocks until the swap
// settles (true), fails or expires (false), or ctx ends.
type Invoice interface {
	PaymentRequest() string
	SwapID() string
	AwaitCompletion(ctx context.Context) (bool, error)
}

// Backend constructs collaborator handles.
type Backend interface {
	NewChainClient(network Network, esploraURL string) (ChainClient, error)
	NewWallet(network Network, descriptor string) (Wallet, error)
	NewSwapSessionBuilder(network Network, chain ChainClient) SwapSessionBuilder
}
