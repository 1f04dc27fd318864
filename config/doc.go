// Package config loads file/env configuration for choosing an
// execution backend and setting evaluator quotas and authorized
// imports, and builds the configured executor through the registry.
package config
