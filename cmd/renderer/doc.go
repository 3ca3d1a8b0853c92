// Package renderer implements the "dbridge renderer" command. It stands in for a
// rendering engine: the scene registry is driven by an engine that logs every call.
package renderer
