package codec

import (
	"errors"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"reflect"
	"testing"
	"time"
)

// TestTextRoundTrip tests that text frames can be encoded and decoded correctly
func TestTextRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cmd  common.Command
		args []string
	}{
		{"NoArgs", common.CmdSessionDisconnected, []string{}},
		{"OneArg", common.CmdDestroyObject, []string{"17"}},
		{"EmptyArgs", common.CmdLog, []string{"", ""}},
		{"ArrayArg", common.CmdReadyForSession, []string{"key", "app", "session", common.JoinArray([]string{"a", "b"}), ""}},
		{"Unicode", common.CmdLogFromJS, []string{"warn", "héllo wörld ✓"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := EncodeText(tt.cmd, tt.args...)
			cmd, args, err := DecodeText(frame)
			if err != nil {
				t.Fatalf("Failed to decode frame: %v", err)
			}
			if cmd != tt.cmd {
				t.Errorf("Command mismatch: got %q, want %q", cmd, tt.cmd)
			}
			if !reflect.DeepEqual(args, tt.args) {
				t.Errorf("Args mismatch: got %q, want %q", args, tt.args)
			}
		})
	}
}

// TestTextWireFormat checks the exact bytes of an encoded frame
func TestTextWireFormat(t *testing.T) {
	got := EncodeText(common.CmdSetParent, "3", "1")
	want := []byte("setParent\x013\x011")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestTextSeparatorsInArgs tests that separator bytes in arguments cannot split a frame
func TestTextSeparatorsInArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"FieldSep", []string{"a\x01b"}, []string{"a b"}},
		{"FrameSep", []string{"line\x02destroyObject\x011"}, []string{"line destroyObject 1"}},
		{"ArraySepKept", []string{"x\x03y"}, []string{"x\x03y"}},
		{"Clean", []string{"plain", ""}, []string{"plain", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := EncodeBundle(time.UnixMilli(1), EncodeText(common.CmdLog, tt.args...), EncodeText(common.CmdLog, "next"))
			_, _, frames, err := DecodeBundle(bundle)
			if err != nil {
				t.Fatalf("Failed to decode bundle: %v", err)
			}
			if len(frames) != 2 {
				t.Fatalf("Expected 2 frames, got %d", len(frames))
			}
			cmd, args, err := DecodeText(frames[0])
			if err != nil {
				t.Fatalf("Failed to decode frame: %v", err)
			}
			if cmd != common.CmdLog || !reflect.DeepEqual(args, tt.want) {
				t.Errorf("got %s %q, want log %q", cmd, args, tt.want)
			}
		})
	}
}

// TestDecodeTextMalformed tests that broken frames are rejected
func TestDecodeTextMalformed(t *testing.T) {
	for name, frame := range map[string][]byte{
		"Empty":          {},
		"NoCommand":      []byte("\x01arg"),
		"FrameSeparator": []byte("log\x02text"),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeText(frame)
			if !errors.Is(err, common.ErrMalformedFrame) {
				t.Errorf("Expected ErrMalformedFrame, got %v", err)
			}
		})
	}
}

// TestArrayRoundTrip tests array joining including the empty array
func TestArrayRoundTrip(t *testing.T) {
	tests := [][]string{
		{},
		{"one"},
		{"a", "b", "c"},
		{"with space", "", "trailing"},
	}

	for _, items := range tests {
		joined := common.JoinArray(items)
		got := common.SplitArray(joined)
		if !reflect.DeepEqual(got, items) {
			t.Errorf("Array round trip failed: got %q, want %q", got, items)
		}
	}

	if common.JoinArray([]string{}) != "" {
		t.Errorf("Empty array must encode as empty string")
	}
}

// TestScalars tests the bool and float forms
func TestScalars(t *testing.T) {
	if FormatBool(true) != "True" || FormatBool(false) != "False" {
		t.Errorf("Unexpected bool form: %s/%s", FormatBool(true), FormatBool(false))
	}
	if _, err := ParseBool("yes"); !errors.Is(err, common.ErrMalformedFrame) {
		t.Errorf("Expected ErrMalformedFrame for invalid bool, got %v", err)
	}

	for f, want := range map[float64]string{
		0:         "0",
		1.5:       "1.5",
		-0.25:     "-0.25",
		1e21:      "1000000000000000000000",
		123.45678: "123.45678",
	} {
		if got := FormatFloat(f); got != want {
			t.Errorf("FormatFloat(%v) = %q, want %q", f, got, want)
		}
		back, err := ParseFloat(want)
		if err != nil || back != f {
			t.Errorf("ParseFloat(%q) = %v, %v", want, back, err)
		}
	}

	if _, err := ParseFloat("1.2.3"); !errors.Is(err, common.ErrMalformedFrame) {
		t.Errorf("Expected ErrMalformedFrame for invalid float, got %v", err)
	}
}

// TestBundle tests bundle encoding and decoding
func TestBundle(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	a := EncodeText(common.CmdDestroyObject, "1")
	b := EncodeText(common.CmdUnparent, "2")

	t.Run("Empty", func(t *testing.T) {
		if got := EncodeBundle(now); got != nil {
			t.Errorf("Expected nil bundle, got %q", got)
		}
		_, has, frames, err := DecodeBundle(nil)
		if err != nil || has || len(frames) != 0 {
			t.Errorf("Unexpected decode of empty bundle: %v %v %v", has, frames, err)
		}
	})

	t.Run("SingleUnprefixed", func(t *testing.T) {
		raw := EncodeBundle(now, a)
		if !reflect.DeepEqual(raw, a) {
			t.Fatalf("Single frame must pass through unchanged, got %q", raw)
		}
		_, has, frames, err := DecodeBundle(raw)
		if err != nil || has {
			t.Fatalf("Unexpected result: has=%v err=%v", has, err)
		}
		if !reflect.DeepEqual(frames, [][]byte{a}) {
			t.Errorf("Frames mismatch: %q", frames)
		}
	})

	t.Run("Multi", func(t *testing.T) {
		raw := EncodeBundle(now, a, b)
		want := "1700000000123\x02destroyObject\x011\x02unparent\x012"
		if string(raw) != want {
			t.Fatalf("got %q, want %q", raw, want)
		}
		sentAt, has, frames, err := DecodeBundle(raw)
		if err != nil || !has || sentAt != 1700000000123 {
			t.Fatalf("Unexpected header: %d %v %v", sentAt, has, err)
		}
		if !reflect.DeepEqual(frames, [][]byte{a, b}) {
			t.Errorf("Frames mismatch: %q", frames)
		}
	})

	t.Run("BadTimestamp", func(t *testing.T) {
		raw := []byte("abc\x02" + string(a) + "\x02" + string(b))
		_, has, frames, err := DecodeBundle(raw)
		if !errors.Is(err, common.ErrMalformedFrame) {
			t.Errorf("Expected ErrMalformedFrame, got %v", err)
		}
		if has || len(frames) != 2 {
			t.Errorf("Frames must still be returned: has=%v frames=%q", has, frames)
		}
	})
}

// TestValueRoundTrip tests typed values in both the wire and the flattened form
func TestValueRoundTrip(t *testing.T) {
	values := map[string]Value{
		"String":      String("hello"),
		"EmptyString": String(""),
		"Strings":     Strings("a", "b"),
		"NoStrings":   Strings(),
		"Float":       Float(-3.25),
		"Floats":      Floats(1, 2.5, -3),
		"NoFloats":    Floats(),
		"BoolTrue":    Bool(true),
		"BoolFalse":   Bool(false),
	}

	for name, v := range values {
		t.Run(name, func(t *testing.T) {
			tag, err := ParseArgFormat(v.Format.String())
			if err != nil || tag != v.Format {
				t.Fatalf("Format tag round trip failed: %v %v", tag, err)
			}

			got, err := DecodeValue(v.Format, v.Encode())
			if err != nil {
				t.Fatalf("Failed to decode %q: %v", v.Encode(), err)
			}
			if !reflect.DeepEqual(got, v) {
				t.Errorf("Encode round trip: got %+v, want %+v", got, v)
			}

			got, err = DecodeFlatValue(v.Format, v.Flatten())
			if err != nil {
				t.Fatalf("Failed to decode %q: %v", v.Flatten(), err)
			}
			if !reflect.DeepEqual(got, v) {
				t.Errorf("Flatten round trip: got %+v, want %+v", got, v)
			}
		})
	}
}

// TestValueForms checks the separators used by Encode and Flatten
func TestValueForms(t *testing.T) {
	v := Floats(1, 2, 3)
	if v.Encode() != "1\x032\x033" {
		t.Errorf("Encode: %q", v.Encode())
	}
	if v.Flatten() != "1,2,3" {
		t.Errorf("Flatten: %q", v.Flatten())
	}
	if _, err := ParseArgFormat("x"); !errors.Is(err, common.ErrMalformedFrame) {
		t.Errorf("Expected ErrMalformedFrame for unknown tag, got %v", err)
	}
}
