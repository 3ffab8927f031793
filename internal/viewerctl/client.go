package viewerctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"meshview/internal/logging"
	"meshview/internal/wire"
)

var (
	// ErrProtocol reports a reply that does not match the request.
	ErrProtocol = errors.New("viewer protocol violation")
	// ErrConnectionLost is returned by every call after the connection failed.
	ErrConnectionLost = errors.New("viewer connection lost")
	// ErrNeedsRequest rejects fire-and-forget sends of request-bearing messages.
	ErrNeedsRequest = errors.New("message expects a response; use Request")
	// ErrNoResponse rejects Request calls for messages the viewer never answers.
	ErrNoResponse = errors.New("message has no response; use Send")
)

// Client is a producer handle to the viewer. It is safe for concurrent use;
// calls are serialized over one connection.
type Client struct {
	connector      *Connector
	requestTimeout time.Duration
	logger         *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	lost   error
	closed bool
}

// ClientOptions tune a Client.
type ClientOptions struct {
	// RequestTimeout bounds each write or round trip when the context has no
	// deadline of its own. Zero waits indefinitely.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewClient returns an unconnected client. Nothing is dialed until the
// first call.
func NewClient(connector *Connector, opts ClientOptions) *Client {
	return &Client{
		connector:      connector,
		requestTimeout: opts.RequestTimeout,
		logger:         logging.NewComponentLogger(opts.Logger, "viewer_client"),
	}
}

// Connected reports whether a live connection is held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes a message that expects no reply.
func (c *Client) Send(ctx context.Context, msg wire.Message) error {
	if msg == nil {
		return errors.New("send nil message")
	}
	if wire.RequiresResponse(msg) {
		return fmt.Errorf("%w: %s", ErrNeedsRequest, msg.Kind())
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.ensureLocked(ctx)
	if err != nil {
		return err
	}
	restore := c.applyDeadline(ctx, conn)
	defer restore()
	if err := wire.WriteMessage(conn, msg); err != nil {
		return c.failLocked(fmt.Errorf("send %s: %w", msg.Kind(), err))
	}
	return nil
}

// Request writes msg and waits for the single reply. A reply of any other
// kind than the one msg demands is ErrProtocol and fails the client.
func (c *Client) Request(ctx context.Context, msg wire.Message) (wire.Response, error) {
	if msg == nil {
		return nil, errors.New("request nil message")
	}
	want, ok := wire.ExpectedResponse(msg)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, msg.Kind())
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.ensureLocked(ctx)
	if err != nil {
		return nil, err
	}
	restore := c.applyDeadline(ctx, conn)
	defer restore()
	if err := wire.WriteMessage(conn, msg); err != nil {
		return nil, c.failLocked(fmt.Errorf("send %s: %w", msg.Kind(), err))
	}
	resp, err := wire.ReadResponse(conn)
	if err != nil {
		return nil, c.failLocked(fmt.Errorf("await %s reply: %w", msg.Kind(), err))
	}
	if resp.Kind() != want {
		return nil, c.failLocked(fmt.Errorf("%w: %s answered with %s", ErrProtocol, msg.Kind(), resp.Kind()))
	}
	return resp, nil
}

// SendMesh replaces the displayed mesh.
func (c *Client) SendMesh(ctx context.Context, mesh wire.Mesh) error {
	return c.Send(ctx, wire.MeshMessage{Mesh: mesh})
}

// SetView moves the viewer camera.
func (c *Client) SetView(ctx context.Context, view wire.View) error {
	return c.Send(ctx, wire.SetViewMessage{View: view})
}

// View asks the viewer for its camera.
func (c *Client) View(ctx context.Context) (wire.View, error) {
	resp, err := c.Request(ctx, wire.RequestViewMessage{})
	if err != nil {
		return wire.View{}, err
	}
	gv, ok := resp.(wire.GetViewResponse)
	if !ok {
		return wire.View{}, fmt.Errorf("%w: unexpected %T", ErrProtocol, resp)
	}
	return gv.View, nil
}

// Close drops the connection. Later calls fail with ErrConnectionLost.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.lost == nil {
		c.lost = errors.New("client closed")
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) ensureLocked(ctx context.Context) (net.Conn, error) {
	if c.lost != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionLost, c.lost)
	}
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := c.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

// failLocked closes the connection and makes the failure sticky.
func (c *Client) failLocked(err error) error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.lost = err
	logging.WarnWithContext(c.logger, "viewer connection failed", "viewer_connection_lost",
		logging.Error(err),
		logging.String(logging.FieldImpact, "this client can no longer reach the viewer"),
		logging.String(logging.FieldErrorHint, "create a new client; the viewer may have exited"))
	return err
}

func (c *Client) applyDeadline(ctx context.Context, conn net.Conn) func() {
	deadline, ok := ctx.Deadline()
	if !ok && c.requestTimeout > 0 {
		deadline, ok = time.Now().Add(c.requestTimeout), true
	}
	if !ok {
		return func() {}
	}
	_ = conn.SetDeadline(deadline)
	return func() { _ = conn.SetDeadline(time.Time{}) }
}
