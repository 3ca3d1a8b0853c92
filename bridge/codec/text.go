package codec

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Text Frames
// --------------------------------------------------------------------------

// EncodeText encodes a command and its arguments into a text frame. FieldSep and
// FrameSep bytes inside an argument would split the frame on the receiver, they are
// replaced by a space.
func EncodeText(cmd common.Command, args ...string) []byte {
	// Calculate total size needed
	size := len(cmd)
	for _, a := range args {
		size += 1 + len(a)
	}

	result := make([]byte, 0, size)
	result = append(result, cmd...)
	for _, a := range args {
		result = append(result, common.FieldSep)
		start := len(result)
		result = append(result, a...)
		if strings.IndexByte(a, common.FieldSep) >= 0 || strings.IndexByte(a, common.FrameSep) >= 0 {
			for i := start; i < len(result); i++ {
				if result[i] == common.FieldSep || result[i] == common.FrameSep {
					result[i] = ' '
				}
			}
		}
	}
	return result
}

// DecodeText splits a text frame into its command and arguments
func DecodeText(frame []byte) (common.Command, []string, error) {
	if len(frame) == 0 {
		return "", nil, fmt.Errorf("%w: empty frame", common.ErrMalformedFrame)
	}
	if bytes.IndexByte(frame, common.FrameSep) >= 0 {
		return "", nil, fmt.Errorf("%w: frame separator inside text frame", common.ErrMalformedFrame)
	}

	fields := strings.Split(string(frame), string(common.FieldSep))
	if fields[0] == "" {
		return "", nil, fmt.Errorf("%w: missing command name", common.ErrMalformedFrame)
	}
	return common.Command(fields[0]), fields[1:], nil
}

// --------------------------------------------------------------------------
// Argument Helpers
// --------------------------------------------------------------------------

// FormatBool returns "True" or "False"
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// ParseBool accepts "True" and "False" (and the lower case forms)
func ParseBool(s string) (bool, error) {
	switch s {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: invalid bool %q", common.ErrMalformedFrame, s)
	}
}

// FormatFloat returns the shortest plain decimal form of f
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseFloat parses a decimal float argument
func ParseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid float %q", common.ErrMalformedFrame, s)
	}
	return f, nil
}

// ParseInt parses a decimal integer argument (timestamps, counts)
func ParseInt(s string) (int64, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid integer %q", common.ErrMalformedFrame, s)
	}
	return i, nil
}

// FormatInt returns the decimal form of i
func FormatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
