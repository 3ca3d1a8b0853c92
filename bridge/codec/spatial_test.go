package codec

import (
	"errors"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"math"
	"testing"
	"time"
)

// familyStates lists the three states of one property family: absent, plain, snap
var familyStates = []struct {
	name string
	set  bool
	snap bool
}{
	{"none", false, false},
	{"plain", true, false},
	{"snap", true, true},
}

// allCombinations returns one geometry for each of the 27 presence combinations
func allCombinations() map[string]Geometry {
	result := make(map[string]Geometry, 27)
	for _, s := range familyStates {
		for _, r := range familyStates {
			for _, tr := range familyStates {
				var g Geometry
				if s.set {
					g.SetScale(Vec3{1.5, -0.0, float32(math.SmallestNonzeroFloat32)}, s.snap)
				}
				if r.set {
					g.SetRotation(Quat{0, 0.70710677, 0, 0.70710677}, r.snap)
				}
				if tr.set {
					g.SetTranslation(Vec3{float32(math.Inf(1)), -1e30, 3.1415927}, tr.snap)
				}
				result["scale_"+s.name+"/rot_"+r.name+"/trans_"+tr.name] = g
			}
		}
	}
	return result
}

func bitsEqual(a, b []float32) bool {
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			return false
		}
	}
	return true
}

// TestSpatialRoundTrip tests all 27 presence combinations bit exact
func TestSpatialRoundTrip(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	combos := allCombinations()
	if len(combos) != 27 {
		t.Fatalf("Expected 27 combinations, got %d", len(combos))
	}

	for name, g := range combos {
		t.Run(name, func(t *testing.T) {
			in := []SpatialRecord{{Handle: 42, Geometry: g}, {Handle: MaxHandle, Geometry: g}}
			frame, err := EncodeSpatial(now, in)
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}

			sentAt, cmd, payload, err := DecodeBinaryFrame(frame)
			if err != nil {
				t.Fatalf("Failed to decode frame: %v", err)
			}
			if sentAt != now.UnixMilli() || cmd != common.CmdUpdateSpatial {
				t.Fatalf("Unexpected header: %d %q", sentAt, cmd)
			}

			out, err := DecodeSpatial(payload)
			if err != nil {
				t.Fatalf("Failed to decode records: %v", err)
			}
			if len(out) != len(in) {
				t.Fatalf("Expected %d records, got %d", len(in), len(out))
			}
			for i := range in {
				if out[i].Handle != in[i].Handle || out[i].Mask != in[i].Mask {
					t.Errorf("Record %d header mismatch: got %d/%06b, want %d/%06b",
						i, out[i].Handle, out[i].Mask, in[i].Handle, in[i].Mask)
				}
				if in[i].Mask&familyScale != 0 && !bitsEqual(out[i].Scale[:], in[i].Scale[:]) {
					t.Errorf("Record %d scale mismatch: %v != %v", i, out[i].Scale, in[i].Scale)
				}
				if in[i].Mask&familyRot != 0 && !bitsEqual(out[i].Rotation[:], in[i].Rotation[:]) {
					t.Errorf("Record %d rotation mismatch: %v != %v", i, out[i].Rotation, in[i].Rotation)
				}
				if in[i].Mask&familyTrans != 0 && !bitsEqual(out[i].Translation[:], in[i].Translation[:]) {
					t.Errorf("Record %d translation mismatch: %v != %v", i, out[i].Translation, in[i].Translation)
				}
			}
		})
	}
}

// TestSpatialLayout checks the header word and the order of the vectors
func TestSpatialLayout(t *testing.T) {
	var g Geometry
	g.SetTranslation(Vec3{7, 8, 9}, false)
	g.SetScale(Vec3{1, 2, 3}, false)

	frame, err := EncodeSpatial(time.UnixMilli(5), []SpatialRecord{{Handle: 3, Geometry: g}})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	prefix := "5\x02updateSpatial\x05"
	if string(frame[:len(prefix)]) != prefix {
		t.Fatalf("Unexpected prefix %q", frame[:len(prefix)])
	}

	payload := frame[len(prefix):]
	if len(payload) != 4+12+12 {
		t.Fatalf("Unexpected payload length %d", len(payload))
	}
	// header: handle 3 << 6 | 0b100010, little endian
	header := uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24
	if header != 3<<6|0b100010 {
		t.Errorf("Unexpected header %b", header)
	}
	// scale comes before translation
	if math.Float32frombits(uint32(payload[4])|uint32(payload[5])<<8|uint32(payload[6])<<16|uint32(payload[7])<<24) != 1 {
		t.Errorf("Scale must be written first")
	}
}

// TestSpatialTruncated tests that truncated payloads fail the whole frame
func TestSpatialTruncated(t *testing.T) {
	var g Geometry
	g.SetRotation(Quat{0, 0, 0, 1}, true)
	frame, err := EncodeSpatial(time.UnixMilli(1), []SpatialRecord{{Handle: 1, Geometry: g}, {Handle: 2, Geometry: g}})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	_, _, payload, err := DecodeBinaryFrame(frame)
	if err != nil {
		t.Fatalf("Failed to decode frame: %v", err)
	}

	for cut := 1; cut < len(payload); cut++ {
		if cut == 20 {
			continue // exactly one complete record
		}
		if _, err := DecodeSpatial(payload[:cut]); !errors.Is(err, common.ErrMalformedFrame) {
			t.Errorf("Cut at %d: expected ErrMalformedFrame, got %v", cut, err)
		}
	}
	if records, err := DecodeSpatial(payload[:20]); err != nil || len(records) != 1 {
		t.Errorf("One complete record expected, got %d, %v", len(records), err)
	}
}

// TestBinaryFrameMalformed tests broken binary frame headers
func TestBinaryFrameMalformed(t *testing.T) {
	for name, raw := range map[string]string{
		"NoTimestamp":  "updateSpatial\x05",
		"NoMarker":     "12\x02updateSpatial",
		"BadTimestamp": "x\x02updateSpatial\x05",
		"NoCommand":    "12\x02\x05",
	} {
		t.Run(name, func(t *testing.T) {
			if _, _, _, err := DecodeBinaryFrame([]byte(raw)); !errors.Is(err, common.ErrMalformedFrame) {
				t.Errorf("Expected ErrMalformedFrame, got %v", err)
			}
		})
	}
}

// TestSpatialHandleLimit tests that handles beyond 26 bits are rejected
func TestSpatialHandleLimit(t *testing.T) {
	var g Geometry
	g.SetScale(Vec3{1, 1, 1}, false)
	if _, err := EncodeSpatial(time.Now(), []SpatialRecord{{Handle: MaxHandle + 1, Geometry: g}}); err == nil {
		t.Errorf("Expected error for handle above MaxHandle")
	}
}

// TestGeometryMerge tests that setting one variant clears its sibling
func TestGeometryMerge(t *testing.T) {
	var g Geometry
	g.SetTranslation(Vec3{1, 1, 1}, true)
	g.SetScale(Vec3{2, 2, 2}, false)

	var later Geometry
	later.SetTranslation(Vec3{3, 3, 3}, false)
	g.Merge(later)

	if g.Mask != MaskTranslation|MaskScale {
		t.Errorf("Unexpected mask %06b", g.Mask)
	}
	if g.Translation != (Vec3{3, 3, 3}) || g.Scale != (Vec3{2, 2, 2}) {
		t.Errorf("Unexpected values %v %v", g.Translation, g.Scale)
	}

	// both variants given in one update, snap wins
	both := Geometry{Mask: MaskRotation | MaskRotationSnap, Rotation: Quat{0, 0, 0, 1}}
	g.Merge(both)
	if g.Mask&familyRot != MaskRotationSnap {
		t.Errorf("Snap must win, got mask %06b", g.Mask)
	}
}
