// Package transport accepts producer connections on the viewer listener and
// feeds decoded messages into the bridge. Connections are served one at a
// time; a second producer waits in the accept backlog until the first one
// disconnects.
package transport
