// Package meshio reads triangle meshes from Wavefront OBJ files for the
// sender commands.
package meshio
