// Package sim implements the "dbridge sim" command, a demo simulation that animates
// objects in the renderer.
package sim
