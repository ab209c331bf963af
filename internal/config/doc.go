// Package config loads, validates, and defaults Clipper's TOML configuration.
package config
