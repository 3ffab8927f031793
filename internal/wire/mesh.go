package wire

import "fmt"

// Validate checks that every face index points into Vertices and that all
// vertex positions are finite.
func (m Mesh) Validate() error {
	n := int32(len(m.Vertices))
	if int(n) != len(m.Vertices) {
		return fmt.Errorf("mesh has %d vertices, more than a face index can address", len(m.Vertices))
	}
	for i, v := range m.Vertices {
		if !v.Finite() {
			return fmt.Errorf("vertex %d is not finite: %v", i, v)
		}
	}
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return fmt.Errorf("face %d index %d out of range [0,%d)", i, idx, n)
			}
		}
	}
	return nil
}

// Centroid returns the mean of the face-expanded vertex list, so a vertex
// shared by k faces is counted k times. It reports false for a mesh without
// faces. Indices are assumed valid.
func (m Mesh) Centroid() (Vec3, bool) {
	if len(m.Faces) == 0 {
		return Vec3{}, false
	}
	var sum [3]float64
	for _, f := range m.Faces {
		for _, idx := range f {
			v := m.Vertices[idx]
			sum[0] += float64(v[0])
			sum[1] += float64(v[1])
			sum[2] += float64(v[2])
		}
	}
	count := float64(3 * len(m.Faces))
	return Vec3{float32(sum[0] / count), float32(sum[1] / count), float32(sum[2] / count)}, true
}
