// Package clock estimates the offset between the local clock and the clock of the
// bridge peer from periodic clockPing/clockPong samples. The estimate tolerates slow
// drift and resets itself when a sample shows the two directions are inconsistent.
package clock
