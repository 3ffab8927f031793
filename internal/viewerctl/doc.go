// Package viewerctl is the producer side of the viewer protocol.
//
// A Client connects lazily on first use. If nothing answers at the viewer
// address it launches a viewer process once and keeps dialing until the
// viewer comes up or the boot deadline passes. After that the client owns a
// single connection for its lifetime; an I/O failure ends it for good.
package viewerctl
