package transport_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"meshview/internal/bridge"
	"meshview/internal/logging"
	"meshview/internal/metrics"
	"meshview/internal/transport"
	"meshview/internal/wire"
)

func startServer(t *testing.T) (*transport.Server, *bridge.Bridge, *metrics.Recorder) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b := bridge.New()
	rec := metrics.New()
	srv, err := transport.NewServer(context.Background(), ln, b, logging.NewNop(), rec)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
		b.Close()
	})
	return srv, b, rec
}

// answerRequests plays the update loop: it records every message and answers
// RequestView with view.
func answerRequests(ctx context.Context, b *bridge.Bridge, view wire.View, seen chan<- wire.Message) {
	for ctx.Err() == nil {
		msg, ok := b.Poll()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		seen <- msg
		if wire.RequiresResponse(msg) {
			_ = b.Respond(wire.GetViewResponse{View: view})
		}
	}
}

func TestServerDeliversInOrderAndAnswersRequests(t *testing.T) {
	srv, b, rec := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	view := wire.View{Position: wire.Vec3{1, 2, 3}, LookAt: wire.Vec3{0, 0, 1}}
	seen := make(chan wire.Message, 16)
	go answerRequests(ctx, b, view, seen)

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sent := []wire.Message{
		wire.MeshMessage{Mesh: wire.Mesh{Vertices: []wire.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, Faces: []wire.Face{{0, 1, 2}}}},
		wire.SetViewMessage{View: view},
		wire.RequestViewMessage{},
	}
	for _, msg := range sent {
		if err := wire.WriteMessage(conn, msg); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := wire.ReadResponse(conn)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	gv, ok := resp.(wire.GetViewResponse)
	if !ok || gv.View != view {
		t.Fatalf("unexpected response %#v", resp)
	}

	for i, want := range sent {
		select {
		case got := <-seen:
			if got.Kind() != want.Kind() {
				t.Fatalf("message %d kind = %s, want %s", i, got.Kind(), want.Kind())
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d never reached the loop", i)
		}
	}
	if got := testutil.ToFloat64(rec.FramesReceived("request_view")); got != 1 {
		t.Fatalf("request_view frames = %v, want 1", got)
	}
}

func TestServerDropsMalformedConnectionAndKeepsServing(t *testing.T) {
	srv, b, rec := startServer(t)

	bad, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	// Valid prefix promising 5 bytes, followed by garbage that is not a payload.
	if _, err := bad.Write(wire.Frame([]byte{0xff, 0xff, 0xff, 0xff, 0xff})); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = bad.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := bad.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		var ne net.Error
		if !errors.As(err, &ne) || ne.Timeout() {
			t.Fatalf("expected server to close the connection, got %v", err)
		}
	}
	bad.Close()

	waitFor(t, func() bool { return testutil.ToFloat64(rec.ConnectionFailures(metrics.FailureDecode)) == 1 })

	good, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer good.Close()
	if err := wire.WriteMessage(good, wire.SetViewMessage{}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	waitFor(t, func() bool { return b.Pending() == 1 })
	if msg, ok := b.Poll(); !ok || msg.Kind() != wire.KindSetView {
		t.Fatalf("Poll = %v,%v", msg, ok)
	}
}

func TestServerClassifiesTruncatedFrame(t *testing.T) {
	srv, _, rec := startServer(t)
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()
	waitFor(t, func() bool { return testutil.ToFloat64(rec.ConnectionFailures(metrics.FailureFraming)) == 1 })
}

func TestServerServesConnectionsSequentially(t *testing.T) {
	srv, b, _ := startServer(t)

	first, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	second, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()

	if err := wire.WriteMessage(second, wire.RequestViewMessage{}); err != nil {
		t.Fatalf("write second: %v", err)
	}
	if err := wire.WriteMessage(first, wire.SetViewMessage{}); err != nil {
		t.Fatalf("write first: %v", err)
	}
	waitFor(t, func() bool { return b.Pending() == 1 })
	time.Sleep(50 * time.Millisecond)
	if b.Pending() != 1 {
		t.Fatalf("second connection was served while the first was open")
	}
	first.Close()
	waitFor(t, func() bool { return b.Pending() == 2 })

	msg, _ := b.Poll()
	if msg.Kind() != wire.KindSetView {
		t.Fatalf("first delivered message = %s, want set_view", msg.Kind())
	}
}

func TestCloseUnblocksActiveConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b := bridge.New()
	srv, err := transport.NewServer(context.Background(), ln, b, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Serve()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	// A request nobody answers parks the server inside Deliver.
	if err := wire.WriteMessage(conn, wire.RequestViewMessage{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool { return b.Pending() == 1 })

	done := make(chan struct{})
	go func() {
		srv.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
