// Package scene holds the viewer's update loop and the in-process renderer
// state it drives.
//
// The loop runs on the goroutine that owns the renderer. Each tick it drains
// the bridge: meshes replace the displayed geometry and retarget the camera,
// SetView moves the camera, and RequestView is answered with the camera as it
// stands after everything queued before it.
package scene
