// Package logging provides the zap-backed implementation of the
// executor Logger interface, plus the zap setup used by examples and
// configuration wiring.
package logging
