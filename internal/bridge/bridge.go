package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"meshview/internal/wire"
)

// ErrUnsolicitedResponse is returned when the loop answers a request that was
// never dequeued.
var ErrUnsolicitedResponse = errors.New("bridge: response without outstanding request")

// Bridge connects the transport goroutine to the update loop with two
// unbounded queues. Inbound carries decoded messages to the loop; Outbound
// carries responses back.
type Bridge struct {
	Inbound  *Queue[wire.Message]
	Outbound *Queue[wire.Response]

	mu          sync.Mutex
	outstanding int
}

// New returns a bridge with empty queues.
func New() *Bridge {
	return &Bridge{
		Inbound:  NewQueue[wire.Message](),
		Outbound: NewQueue[wire.Response](),
	}
}

// Deliver hands msg to the loop. For request-bearing messages it then waits
// for the matching response, which it returns with ok set.
func (b *Bridge) Deliver(ctx context.Context, msg wire.Message) (wire.Response, bool, error) {
	msg = wire.Canonical(msg)
	if msg == nil {
		return nil, false, errors.New("deliver nil message")
	}
	if !b.Inbound.Push(msg) {
		return nil, false, ErrClosed
	}
	if !wire.RequiresResponse(msg) {
		return nil, false, nil
	}
	resp, err := b.Outbound.Pop(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("await %s response: %w", msg.Kind(), err)
	}
	return resp, true, nil
}

// Poll returns the next inbound message without blocking.
func (b *Bridge) Poll() (wire.Message, bool) {
	msg, ok := b.Inbound.TryPop()
	if ok && wire.RequiresResponse(msg) {
		b.mu.Lock()
		b.outstanding++
		b.mu.Unlock()
	}
	return msg, ok
}

// Respond queues resp for the transport. Every call must answer a
// request-bearing message previously returned by Poll.
func (b *Bridge) Respond(resp wire.Response) error {
	b.mu.Lock()
	if b.outstanding == 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnsolicitedResponse, resp.Kind())
	}
	b.outstanding--
	b.mu.Unlock()
	if !b.Outbound.Push(resp) {
		return ErrClosed
	}
	return nil
}

// Pending reports the number of inbound messages not yet polled.
func (b *Bridge) Pending() int {
	return b.Inbound.Len()
}

// Close shuts both queues and wakes any waiter.
func (b *Bridge) Close() {
	b.Inbound.Close()
	b.Outbound.Close()
}
