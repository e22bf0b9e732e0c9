// Package config loads the terminal's TOML configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/btcpos/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. BTCPOS_* environment variables override file values
//
// Nested keys map to environment variables by replacing dots with
// underscores, so storage.backend becomes BTCPOS_STORAGE_BACKEND. The
// referral credentials also honour the plain API_KEY and API_SECRET
// variables.
//
// # Default Values
//
//   - Network: liquid
//   - Esplora endpoint: derived from the network
//   - Rate refresh interval: 1m
//   - Storage: file backend in ~/.local/share/btcpos
//   - Log file: ~/.local/share/btcpos/btcpos.log
//   - Simulated settlement delay: 8s
//
// # TOML Format
//
//	network = "liquidtestnet"
//	esplora_url = "https://blockstream.info/liquidtestnet/api"
//	base_url = "https://pos.example.com/"
//	referral_tag = "btcpos"
//	refresh_interval = "1m"
//
//	[storage]
//	backend = "badger"
//	dir = "~/.local/share/btcpos"
//
//	[prices]
//	sources = ["coingecko", "kraken"]
//	fixed_rate = ""
//
//	[log]
//	level = "info"
//	file = "~/.local/share/btcpos/btcpos.log"
//
// Every field is optional. Paths are tilde-expanded and made absolute.
//
// # Error Handling
//
// Missing config files are NOT an error. Load fails for unreadable files,
// TOML syntax errors, unknown networks, malformed durations and
// non-positive fixed rates; all of these are prefixed with "parse config".
package config
