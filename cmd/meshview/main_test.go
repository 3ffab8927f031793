package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"meshview/internal/testsupport"
	"meshview/internal/wire"
)

func TestViewSetThenGetJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"view", "set", "--position", "3,3,3", "--look-at", "0,0.5,0"}, env.configPath)
	if err != nil {
		t.Fatalf("view set: %v", err)
	}
	requireContains(t, out, "Camera at 3,3,3 looking at 0,0.5,0")

	out, _, err = runCLI(t, []string{"view", "get", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("view get: %v", err)
	}
	var got viewJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode view json %q: %v", out, err)
	}
	if got.Position != [3]float32{3, 3, 3} || got.LookAt != [3]float32{0, 0.5, 0} {
		t.Fatalf("view = %+v", got)
	}
}

func TestViewGetTable(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"view", "get"}, env.configPath)
	if err != nil {
		t.Fatalf("view get: %v", err)
	}
	requireContains(t, out, "position")
	requireContains(t, out, "-1.0000")
}

func TestMeshTriangleRetargetsCamera(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"mesh", "triangle"}, env.configPath)
	if err != nil {
		t.Fatalf("mesh triangle: %v", err)
	}
	requireContains(t, out, "3 vertices, 1 faces")

	out, _, err = runCLI(t, []string{"view", "get", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("view get: %v", err)
	}
	var got viewJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	third := float32(1.0 / 3.0)
	if got.LookAt != [3]float32{third, third, 0} {
		t.Fatalf("look_at = %v, want triangle centroid", got.LookAt)
	}
}

func TestMeshSendOBJ(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "quad.obj")
	testsupport.WriteOBJ(t, path, wire.Mesh{
		Vertices: []wire.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Faces:    []wire.Face{{0, 1, 2}, {0, 2, 3}},
	})
	out, _, err := runCLI(t, []string{"mesh", "send", path}, env.configPath)
	if err != nil {
		t.Fatalf("mesh send: %v", err)
	}
	requireContains(t, out, "4 vertices, 2 faces")
}

func TestViewHistoryAfterShutdown(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"view", "set", "--position", "1,2,3", "--look-at", "0,0,0"}, env.configPath); err != nil {
		t.Fatalf("view set: %v", err)
	}
	// The answer to a request is queued behind the earlier set.
	if _, _, err := runCLI(t, []string{"view", "get"}, env.configPath); err != nil {
		t.Fatalf("view get: %v", err)
	}
	env.stop()

	out, _, err := runCLI(t, []string{"view", "history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("view history: %v", err)
	}
	var records []viewRecordJSON
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode history %q: %v", out, err)
	}
	if len(records) == 0 || records[0].Position != [3]float32{1, 2, 3} {
		t.Fatalf("history = %+v", records)
	}
}

func TestStatusReportsRunningViewer(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !report.Reachable || !report.LockHeld {
		t.Fatalf("status = %+v, want reachable and locked", report)
	}
	if report.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", report.PID, os.Getpid())
	}
}

func TestProducerFailsWhenViewerCannotStart(t *testing.T) {
	env := setupCLITestEnv(t)
	env.stop()

	_, _, err := runCLI(t, []string{"view", "get"}, env.configPath)
	if err == nil {
		t.Fatal("expected error when no viewer can be reached or launched")
	}
}

func TestConfigInit(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "meshview.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestParseVec3(t *testing.T) {
	v, err := parseVec3(" 1, -2.5 ,3e2")
	if err != nil {
		t.Fatalf("parseVec3: %v", err)
	}
	if v != (wire.Vec3{1, -2.5, 300}) {
		t.Fatalf("parseVec3 = %v", v)
	}
	for _, bad := range []string{"1,2", "1,2,x", "1,2,3,4", "NaN,0,0"} {
		if _, err := parseVec3(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if formatVec3(wire.Vec3{0.5, -1, 2}) != "0.5,-1,2" {
		t.Fatalf("formatVec3 = %q", formatVec3(wire.Vec3{0.5, -1, 2}))
	}
}
