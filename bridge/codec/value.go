package codec

import (
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"strings"
)

// --------------------------------------------------------------------------
// Argument Formats
// --------------------------------------------------------------------------

// ArgFormat is the closed set of typed argument formats. The string form is the
// format tag that precedes a typed argument on the wire.
type ArgFormat uint8

const (
	ArgString ArgFormat = iota
	ArgStringArray
	ArgFloat
	ArgFloatArray
	ArgBool
)

var formatTags = [...]string{
	ArgString:      "s",
	ArgStringArray: "ss",
	ArgFloat:       "f",
	ArgFloatArray:  "ff",
	ArgBool:        "b",
}

// String returns the wire tag of the format
func (f ArgFormat) String() string {
	if int(f) < len(formatTags) {
		return formatTags[f]
	}
	return "unknown"
}

// IsArray reports whether values of this format hold several elements
func (f ArgFormat) IsArray() bool {
	return f == ArgStringArray || f == ArgFloatArray
}

// ParseArgFormat converts a wire tag into an ArgFormat
func ParseArgFormat(tag string) (ArgFormat, error) {
	for i, t := range formatTags {
		if t == tag {
			return ArgFormat(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown format tag %q", common.ErrMalformedFrame, tag)
}

// --------------------------------------------------------------------------
// Typed Values
// --------------------------------------------------------------------------

// Value is one typed argument. Which field is used depends on Format.
type Value struct {
	Format ArgFormat
	Str    string    // Used for: ArgString
	Strs   []string  // Used for: ArgStringArray
	Num    float64   // Used for: ArgFloat
	Nums   []float64 // Used for: ArgFloatArray
	Flag   bool      // Used for: ArgBool
}

func String(s string) Value { return Value{Format: ArgString, Str: s} }
func Float(f float64) Value { return Value{Format: ArgFloat, Num: f} }
func Bool(b bool) Value     { return Value{Format: ArgBool, Flag: b} }

// Strings creates a string array value, no arguments give an empty (non nil) array
func Strings(s ...string) Value {
	if s == nil {
		s = []string{}
	}
	return Value{Format: ArgStringArray, Strs: s}
}

// Floats creates a float array value, no arguments give an empty (non nil) array
func Floats(f ...float64) Value {
	if f == nil {
		f = []float64{}
	}
	return Value{Format: ArgFloatArray, Nums: f}
}

// Encode returns the wire form of the value, array elements are joined with ArraySep
func (v Value) Encode() string {
	return v.join(string(common.ArraySep))
}

// Flatten returns the value with array elements joined by commas. This is the form used
// for deferred command arguments.
func (v Value) Flatten() string {
	return v.join(",")
}

func (v Value) join(sep string) string {
	switch v.Format {
	case ArgString:
		return v.Str
	case ArgStringArray:
		return strings.Join(v.Strs, sep)
	case ArgFloat:
		return FormatFloat(v.Num)
	case ArgFloatArray:
		parts := make([]string, len(v.Nums))
		for i, n := range v.Nums {
			parts[i] = FormatFloat(n)
		}
		return strings.Join(parts, sep)
	case ArgBool:
		return FormatBool(v.Flag)
	default:
		return ""
	}
}

// DecodeValue parses the wire form produced by Encode
func DecodeValue(format ArgFormat, s string) (Value, error) {
	return decodeValue(format, s, string(common.ArraySep))
}

// DecodeFlatValue parses the comma joined form produced by Flatten
func DecodeFlatValue(format ArgFormat, s string) (Value, error) {
	return decodeValue(format, s, ",")
}

func decodeValue(format ArgFormat, s, sep string) (Value, error) {
	split := func() []string {
		if s == "" {
			return []string{}
		}
		return strings.Split(s, sep)
	}

	switch format {
	case ArgString:
		return String(s), nil
	case ArgStringArray:
		return Strings(split()...), nil
	case ArgFloat:
		f, err := ParseFloat(s)
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case ArgFloatArray:
		parts := split()
		nums := make([]float64, len(parts))
		for i, p := range parts {
			f, err := ParseFloat(p)
			if err != nil {
				return Value{}, err
			}
			nums[i] = f
		}
		return Floats(nums...), nil
	case ArgBool:
		b, err := ParseBool(s)
		if err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown format %d", common.ErrMalformedFrame, format)
	}
}
