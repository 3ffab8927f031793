package main

import (
	"fmt"
	"strconv"
	"strings"

	"meshview/internal/wire"
)

// vec3Flag parses "x,y,z" into a wire.Vec3 for cobra flags.
type vec3Flag struct {
	value wire.Vec3
	set   bool
}

func (f *vec3Flag) String() string {
	if !f.set {
		return ""
	}
	return formatVec3(f.value)
}

func (f *vec3Flag) Set(raw string) error {
	v, err := parseVec3(raw)
	if err != nil {
		return err
	}
	f.value = v
	f.set = true
	return nil
}

func (f *vec3Flag) Type() string { return "x,y,z" }

func parseVec3(raw string) (wire.Vec3, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return wire.Vec3{}, fmt.Errorf("expected three comma-separated numbers, got %q", raw)
	}
	var v wire.Vec3
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return wire.Vec3{}, fmt.Errorf("component %d of %q: %w", i+1, raw, err)
		}
		v[i] = float32(f)
	}
	if !v.Finite() {
		return wire.Vec3{}, fmt.Errorf("%q is not finite", raw)
	}
	return v, nil
}

func formatVec3(v wire.Vec3) string {
	parts := make([]string, len(v))
	for i, c := range v {
		parts[i] = strconv.FormatFloat(float64(c), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}
