package codec

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"strconv"
	"time"
)

// --------------------------------------------------------------------------
// Bundles
// --------------------------------------------------------------------------

// EncodeBundle joins frames into one bundle. A single frame is returned unprefixed,
// several frames are prefixed with the send timestamp (ms since epoch). Zero frames
// return nil.
func EncodeBundle(now time.Time, frames ...[]byte) []byte {
	switch len(frames) {
	case 0:
		return nil
	case 1:
		return frames[0]
	}

	ts := strconv.AppendInt(nil, now.UnixMilli(), 10)

	// Calculate total size needed
	size := len(ts)
	for _, f := range frames {
		size += 1 + len(f)
	}

	result := make([]byte, 0, size)
	result = append(result, ts...)
	for _, f := range frames {
		result = append(result, common.FrameSep)
		result = append(result, f...)
	}
	return result
}

// DecodeBundle splits a text bundle into its frames. For multi frame bundles the leading
// timestamp is returned with hasTimestamp set.
//
// If the leading timestamp does not parse, the frames are still returned together with an
// error wrapping ErrMalformedFrame, so the caller can skip delay accounting and go on.
func DecodeBundle(raw []byte) (sentAt int64, hasTimestamp bool, frames [][]byte, err error) {
	if len(raw) == 0 {
		return 0, false, nil, nil
	}

	parts := bytes.Split(raw, []byte{common.FrameSep})
	if len(parts) == 1 {
		return 0, false, parts, nil
	}

	frames = parts[1:]
	sentAt, perr := strconv.ParseInt(string(parts[0]), 10, 64)
	if perr != nil {
		return 0, false, frames, fmt.Errorf("%w: invalid bundle timestamp %q", common.ErrMalformedFrame, parts[0])
	}
	return sentAt, true, frames, nil
}
