package meshio

import (
	"fmt"

	"github.com/chewxy/math32"

	"meshview/internal/wire"
)

// Triangle is the single right triangle in the z=0 plane used as a smoke test.
func Triangle() wire.Mesh {
	return wire.Mesh{
		Vertices: []wire.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:    []wire.Face{{0, 1, 2}},
	}
}

// Sphere builds a latitude/longitude sphere around center. rings counts the
// latitude bands and segments the longitude slices.
func Sphere(center wire.Vec3, radius float32, rings, segments int) (wire.Mesh, error) {
	if radius <= 0 {
		return wire.Mesh{}, fmt.Errorf("sphere radius must be positive, got %v", radius)
	}
	if rings < 2 || segments < 3 {
		return wire.Mesh{}, fmt.Errorf("sphere needs at least 2 rings and 3 segments, got %d and %d", rings, segments)
	}

	var mesh wire.Mesh
	// Vertex (r, s) for r in [0, rings] and s in [0, segments); the poles are
	// repeated per segment to keep indexing uniform.
	for r := 0; r <= rings; r++ {
		theta := math32.Pi * float32(r) / float32(rings)
		sinT, cosT := math32.Sincos(theta)
		for s := 0; s < segments; s++ {
			phi := 2 * math32.Pi * float32(s) / float32(segments)
			sinP, cosP := math32.Sincos(phi)
			mesh.Vertices = append(mesh.Vertices, center.Add(wire.Vec3{
				radius * sinT * cosP,
				radius * sinT * sinP,
				radius * cosT,
			}))
		}
	}
	at := func(r, s int) int32 { return int32(r*segments + s%segments) }
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			a, b := at(r, s), at(r, s+1)
			c, d := at(r+1, s), at(r+1, s+1)
			if r > 0 {
				mesh.Faces = append(mesh.Faces, wire.Face{a, c, b})
			}
			if r < rings-1 {
				mesh.Faces = append(mesh.Faces, wire.Face{b, c, d})
			}
		}
	}
	return mesh, nil
}
