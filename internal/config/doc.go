// Package config loads, normalizes, and validates the reelforge TOML
// configuration: filesystem paths, collaborator binaries, browser runtime
// provisioning, staging hygiene, and logging.
package config
