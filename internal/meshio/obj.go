package meshio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"meshview/internal/wire"
)

// ReadOBJFile opens path and parses it with ReadOBJ.
func ReadOBJFile(path string) (wire.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return wire.Mesh{}, fmt.Errorf("open mesh: %w", err)
	}
	defer f.Close()
	mesh, err := ReadOBJ(f)
	if err != nil {
		return wire.Mesh{}, fmt.Errorf("%s: %w", path, err)
	}
	return mesh, nil
}

// ReadOBJ parses "v" and "f" statements. Polygons are fan-triangulated,
// negative indices count back from the latest vertex, and texture or normal
// references ("1/2/3") are ignored. Every other statement is skipped.
func ReadOBJ(r io.Reader) (wire.Mesh, error) {
	var mesh wire.Mesh
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			v, err := parseVertex(fields[1:])
			if err != nil {
				return wire.Mesh{}, fmt.Errorf("line %d: %w", lineNo, err)
			}
			mesh.Vertices = append(mesh.Vertices, v)
		case "f":
			idx, err := parseFace(fields[1:], len(mesh.Vertices))
			if err != nil {
				return wire.Mesh{}, fmt.Errorf("line %d: %w", lineNo, err)
			}
			for i := 1; i+1 < len(idx); i++ {
				mesh.Faces = append(mesh.Faces, wire.Face{idx[0], idx[i], idx[i+1]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return wire.Mesh{}, fmt.Errorf("read obj: %w", err)
	}
	return mesh, nil
}

func parseVertex(fields []string) (wire.Vec3, error) {
	if len(fields) < 3 {
		return wire.Vec3{}, fmt.Errorf("vertex needs 3 coordinates, got %d", len(fields))
	}
	var v wire.Vec3
	for i := range 3 {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return wire.Vec3{}, fmt.Errorf("vertex coordinate %q: %w", fields[i], err)
		}
		v[i] = float32(f)
	}
	return v, nil
}

func parseFace(fields []string, vertexCount int) ([]int32, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("face needs at least 3 vertices, got %d", len(fields))
	}
	out := make([]int32, len(fields))
	for i, field := range fields {
		ref, _, _ := strings.Cut(field, "/")
		n, err := strconv.ParseInt(ref, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("face index %q: %w", field, err)
		}
		switch {
		case n > 0:
			n--
		case n < 0:
			n += int64(vertexCount)
		default:
			return nil, fmt.Errorf("face index 0 is not valid")
		}
		if n < 0 || n >= int64(vertexCount) {
			return nil, fmt.Errorf("face index %q refers to a missing vertex", field)
		}
		out[i] = int32(n)
	}
	return out, nil
}
