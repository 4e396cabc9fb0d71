// Package config loads, validates, and hot-reloads the TOML configuration
// for the inkwell daemon and CLI.
package config
