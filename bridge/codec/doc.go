// Package codec implements the wire format of the bridge. It encodes and decodes
// text frames, bundles of text frames, typed arguments and the binary spatial frame.
//
// The package focuses on:
//   - A compact text grammar (command and arguments joined with 0x01)
//   - Bundling several frames into one socket message (joined with 0x02)
//   - A packed little-endian binary format for bulk spatial updates
//   - Minimizing memory allocations on the hot paths
//
// Key Components:
//
//   - EncodeText / DecodeText: the text frame grammar. Array arguments are joined
//     with 0x03, booleans are "True"/"False" and floats use the plain decimal form.
//
//   - EncodeBundle / DecodeBundle: a single frame is sent unprefixed, several frames
//     are prefixed with the sender timestamp which the receiver uses for latency accounting.
//
//   - ArgFormat / Value: the closed set of typed argument formats (s, ss, f, ff, b).
//
//   - Geometry / SpatialRecord: merged geometry updates. Each record is a uint32 header
//     (6 presence bits, handle above) followed by the present scale, rotation and
//     translation floats. Decoding fails the whole frame on truncation.
package codec
