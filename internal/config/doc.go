// Package config provides configuration loading and validation for the
// synthesis relay service. It handles YAML-based configuration with
// per-section validation and environment fallback for credentials.
package config
