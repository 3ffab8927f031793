package scene

import (
	"sync"

	"github.com/chewxy/math32"

	"meshview/internal/wire"
)

// Renderer is what the update loop drives.
type Renderer interface {
	ApplyMesh(mesh wire.Mesh)
	ApplyView(view wire.View)
	CurrentView() wire.View
}

// DefaultView is the camera a fresh viewer starts with.
var DefaultView = wire.View{
	Position: wire.Vec3{-1, -1, -1},
	LookAt:   wire.Vec3{0, 0, 0},
}

// State is a headless Renderer. It keeps the expanded triangle list with
// flat per-vertex normals and the camera eye and target.
type State struct {
	mu        sync.RWMutex
	positions []wire.Vec3
	normals   []wire.Vec3
	view      wire.View
}

// NewState returns an empty scene looking at the origin from DefaultView.
func NewState() *State {
	return &State{view: DefaultView}
}

// ApplyMesh replaces the geometry. The index list is walked back to front,
// which flips each triangle's winding, and every triangle gets its own three
// vertices. Indices must already be valid.
func (s *State) ApplyMesh(mesh wire.Mesh) {
	n := 3 * len(mesh.Faces)
	positions := make([]wire.Vec3, 0, n)
	for i := len(mesh.Faces) - 1; i >= 0; i-- {
		f := mesh.Faces[i]
		for j := 2; j >= 0; j-- {
			positions = append(positions, mesh.Vertices[f[j]])
		}
	}
	normals := make([]wire.Vec3, len(positions))
	for i := 0; i+2 < len(positions); i += 3 {
		normal := flatNormal(positions[i], positions[i+1], positions[i+2])
		normals[i], normals[i+1], normals[i+2] = normal, normal, normal
	}

	s.mu.Lock()
	s.positions = positions
	s.normals = normals
	s.mu.Unlock()
}

// ApplyView moves the camera.
func (s *State) ApplyView(view wire.View) {
	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
}

// CurrentView returns a copy of the camera.
func (s *State) CurrentView() wire.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Radius is the distance from eye to target. The backdrop plane sits this
// far behind the camera and is scaled by it.
func (s *State) Radius() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Position.Sub(s.view.LookAt).Len()
}

// Triangles returns the number of displayed triangles.
func (s *State) Triangles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions) / 3
}

// Positions returns a copy of the expanded vertex positions.
func (s *State) Positions() []wire.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]wire.Vec3(nil), s.positions...)
}

// Normals returns a copy of the per-vertex normals.
func (s *State) Normals() []wire.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]wire.Vec3(nil), s.normals...)
}

// flatNormal is the unit normal of triangle abc under counter-clockwise
// winding. Degenerate triangles get the zero vector.
func flatNormal(a, b, c wire.Vec3) wire.Vec3 {
	n := b.Sub(a).Cross(c.Sub(a))
	l := n.Len()
	if l == 0 || math32.IsNaN(l) {
		return wire.Vec3{}
	}
	return n.Scale(1 / l)
}
