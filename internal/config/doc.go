// Package config defines the controller daemon settings and provides
// helpers to load, validate and save them in YAML format.
//
// Missing values are filled with defaults by Validate, so a settings file
// only needs to name what differs from a bench setup with in-memory I/O.
package config
