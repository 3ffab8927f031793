// Package bridge moves decoded messages from the transport goroutine to the
// viewer update loop and carries responses back, using two unbounded FIFO
// queues so neither side can stall the other on a full buffer.
package bridge
