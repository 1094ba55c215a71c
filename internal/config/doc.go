// Package config loads, validates, and normalizes the TOML configuration
// shared by the hlsforge daemon and CLI.
package config
