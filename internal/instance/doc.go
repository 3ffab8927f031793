// Package instance owns the single-viewer rendezvous: an exclusive file lock
// plus the TCP listener producers dial. A process that holds both is the
// viewer; everyone else is a client.
package instance
