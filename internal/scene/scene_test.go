package scene_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"meshview/internal/bridge"
	"meshview/internal/logging"
	"meshview/internal/metrics"
	"meshview/internal/scene"
	"meshview/internal/wire"
)

func triangle() wire.Mesh {
	return wire.Mesh{
		Vertices: []wire.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:    []wire.Face{{0, 1, 2}},
	}
}

func newLoop(t *testing.T, opts scene.Options) (*scene.Loop, *bridge.Bridge, *scene.State) {
	t.Helper()
	b := bridge.New()
	t.Cleanup(b.Close)
	state := scene.NewState()
	return scene.NewLoop(b, state, logging.NewNop(), opts), b, state
}

func TestStateDefaults(t *testing.T) {
	s := scene.NewState()
	if s.CurrentView() != scene.DefaultView {
		t.Fatalf("default view = %+v", s.CurrentView())
	}
	want := float32(1.7320508)
	if got := s.Radius(); got < want-1e-6 || got > want+1e-6 {
		t.Fatalf("radius = %v, want sqrt(3)", got)
	}
	if s.Triangles() != 0 {
		t.Fatal("fresh scene has no triangles")
	}
}

func TestApplyMeshReversesWindingAndComputesNormals(t *testing.T) {
	s := scene.NewState()
	s.ApplyMesh(triangle())
	pos := s.Positions()
	want := []wire.Vec3{{0, 1, 0}, {1, 0, 0}, {0, 0, 0}}
	if len(pos) != 3 {
		t.Fatalf("positions = %v", pos)
	}
	for i := range want {
		if pos[i] != want[i] {
			t.Fatalf("position %d = %v, want %v", i, pos[i], want[i])
		}
	}
	for i, n := range s.Normals() {
		if n != (wire.Vec3{0, 0, -1}) {
			t.Fatalf("normal %d = %v, want (0,0,-1)", i, n)
		}
	}
}

func TestApplyMeshFaceOrderReversed(t *testing.T) {
	s := scene.NewState()
	s.ApplyMesh(wire.Mesh{
		Vertices: []wire.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Faces:    []wire.Face{{0, 1, 2}, {0, 1, 3}},
	})
	pos := s.Positions()
	if len(pos) != 6 || pos[0] != (wire.Vec3{0, 0, 1}) || pos[5] != (wire.Vec3{0, 0, 0}) {
		t.Fatalf("expected last face first, got %v", pos)
	}
}

func TestStepMeshRetargetsToCentroid(t *testing.T) {
	loop, b, state := newLoop(t, scene.Options{})
	b.Inbound.Push(wire.MeshMessage{Mesh: triangle()})

	handled, changed, err := loop.Step()
	if err != nil || !handled || !changed {
		t.Fatalf("Step = %v,%v,%v", handled, changed, err)
	}
	third := float32(1.0 / 3.0)
	view := state.CurrentView()
	if view.LookAt != (wire.Vec3{third, third, 0}) {
		t.Fatalf("look_at = %v, want centroid", view.LookAt)
	}
	if view.Position != scene.DefaultView.Position {
		t.Fatalf("eye moved to %v", view.Position)
	}
	if state.Triangles() != 1 {
		t.Fatalf("triangles = %d", state.Triangles())
	}
}

func TestStepEmptyMeshKeepsTarget(t *testing.T) {
	loop, b, state := newLoop(t, scene.Options{})
	state.ApplyView(wire.View{Position: wire.Vec3{5, 5, 5}, LookAt: wire.Vec3{1, 1, 1}})
	b.Inbound.Push(wire.MeshMessage{Mesh: wire.Mesh{Vertices: []wire.Vec3{{9, 9, 9}}}})

	_, changed, err := loop.Step()
	if err != nil || changed {
		t.Fatalf("Step changed=%v err=%v", changed, err)
	}
	if state.CurrentView().LookAt != (wire.Vec3{1, 1, 1}) {
		t.Fatalf("look_at moved to %v", state.CurrentView().LookAt)
	}
	if state.Triangles() != 0 {
		t.Fatalf("triangles = %d", state.Triangles())
	}
}

func TestStepInvalidMeshIsDropped(t *testing.T) {
	rec := metrics.New()
	loop, b, state := newLoop(t, scene.Options{Metrics: rec})
	state.ApplyMesh(triangle())
	bad := triangle()
	bad.Faces[0][2] = 7
	b.Inbound.Push(wire.MeshMessage{Mesh: bad})

	handled, changed, err := loop.Step()
	if err != nil || !handled || changed {
		t.Fatalf("Step = %v,%v,%v", handled, changed, err)
	}
	if state.Triangles() != 1 {
		t.Fatal("previous mesh should remain after a rejected one")
	}
	if testutil.ToFloat64(rec.MeshesApplied()) != 0 {
		t.Fatal("rejected mesh must not count as applied")
	}
}

func TestRequestViewSeesEarlierSetView(t *testing.T) {
	loop, b, _ := newLoop(t, scene.Options{})
	want := wire.View{Position: wire.Vec3{1, 2, 3}, LookAt: wire.Vec3{4, 5, 6}}

	done := make(chan wire.Response, 1)
	go func() {
		if _, _, err := b.Deliver(context.Background(), wire.SetViewMessage{View: want}); err != nil {
			t.Errorf("Deliver set view: %v", err)
		}
		resp, _, err := b.Deliver(context.Background(), wire.RequestViewMessage{})
		if err != nil {
			t.Errorf("Deliver request: %v", err)
		}
		done <- resp
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := loop.Drain(); err != nil {
			t.Fatalf("Drain: %v", err)
		}
		select {
		case resp := <-done:
			gv, ok := resp.(wire.GetViewResponse)
			if !ok || gv.View != want {
				t.Fatalf("response = %#v, want %+v", resp, want)
			}
			return
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("no response before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStepAnswersPointerRequest(t *testing.T) {
	loop, b, _ := newLoop(t, scene.Options{})

	// Bypass Deliver so the loop sees the pointer form directly.
	b.Inbound.Push(&wire.RequestViewMessage{})
	handled, _, err := loop.Step()
	if err != nil || !handled {
		t.Fatalf("Step: handled=%v err=%v", handled, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := b.Outbound.Pop(ctx)
	if err != nil {
		t.Fatalf("no response queued: %v", err)
	}
	if gv, ok := resp.(wire.GetViewResponse); !ok || gv.View != scene.DefaultView {
		t.Fatalf("response = %#v", resp)
	}
}

func TestDrainReportsViewChangeOncePerBatch(t *testing.T) {
	var calls []wire.View
	loop, b, _ := newLoop(t, scene.Options{OnViewChange: func(v wire.View) { calls = append(calls, v) }})
	last := wire.View{Position: wire.Vec3{0, 0, 9}}
	b.Inbound.Push(wire.SetViewMessage{View: wire.View{Position: wire.Vec3{1, 0, 0}}})
	b.Inbound.Push(wire.SetViewMessage{View: last})

	if err := loop.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(calls) != 1 || calls[0] != last {
		t.Fatalf("OnViewChange calls = %v", calls)
	}
	if err := loop.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(calls) != 1 {
		t.Fatal("idle drain must not report a change")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	loop, b, state := newLoop(t, scene.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx, time.Millisecond) }()

	b.Inbound.Push(wire.MeshMessage{Mesh: triangle()})
	deadline := time.Now().Add(2 * time.Second)
	for state.Triangles() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Run never applied the mesh")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
