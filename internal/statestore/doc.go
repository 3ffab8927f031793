// Package statestore persists camera views in SQLite so a restarted viewer
// comes back looking where the last one left off.
package statestore
