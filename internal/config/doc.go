// Package config loads, normalizes, and validates meshview configuration.
//
// It supplies defaults for the viewer endpoint, the client connect/boot
// timing, logging, the view state store and metrics exposition. Files are
// TOML; paths accept tilde shortcuts and MESHVIEW_ADDRESS overrides the
// configured endpoint. Obtain settings through this package so the viewer
// and the client agree on the endpoint and lock file.
package config
