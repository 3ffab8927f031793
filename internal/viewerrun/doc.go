// Package viewerrun assembles a viewer process: instance claim, transport
// listener, update loop, optional state store and metrics endpoint.
package viewerrun
