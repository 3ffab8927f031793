// Command meshview runs the mesh viewer and the producer commands that feed
// it.
//
//	meshview mesh send model.obj   # launches a viewer if none is running
//	meshview view set --position 3,3,3 --look-at 0,0,0
//	meshview view get
package main
