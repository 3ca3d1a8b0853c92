package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"math"
	"strconv"
	"time"
)

// --------------------------------------------------------------------------
// Geometry Updates
// --------------------------------------------------------------------------

// Vec3 is a scale or translation vector
type Vec3 [3]float32

// Quat is a rotation quaternion in x, y, z, w order
type Quat [4]float32

// Mask holds the presence bits of one spatial record
type Mask uint8

// Bit flags to indicate which properties are present. The snap variant of a property
// means "jump to the value", the plain variant means "interpolate towards it".
const (
	MaskTranslationSnap Mask = 1 << 0
	MaskTranslation     Mask = 1 << 1
	MaskRotationSnap    Mask = 1 << 2
	MaskRotation        Mask = 1 << 3
	MaskScaleSnap       Mask = 1 << 4
	MaskScale           Mask = 1 << 5
)

const (
	maskBits = 6
	maskAll  = Mask(1<<maskBits - 1)

	familyScale = MaskScale | MaskScaleSnap
	familyRot   = MaskRotation | MaskRotationSnap
	familyTrans = MaskTranslation | MaskTranslationSnap
)

// MaxHandle is the largest handle that fits into a spatial record header
const MaxHandle = common.Handle(1<<(32-maskBits) - 1)

// Geometry is a pending or decoded spatial update. A property is only meaningful if
// one of the bits of its family is set in Mask.
type Geometry struct {
	Mask        Mask
	Scale       Vec3
	Rotation    Quat
	Translation Vec3
}

// SetScale sets the scale and clears the other variant of the scale family
func (g *Geometry) SetScale(v Vec3, snap bool) {
	g.Scale = v
	g.Mask = g.Mask&^familyScale | pick(snap, MaskScaleSnap, MaskScale)
}

// SetRotation sets the rotation and clears the other variant of the rotation family
func (g *Geometry) SetRotation(q Quat, snap bool) {
	g.Rotation = q
	g.Mask = g.Mask&^familyRot | pick(snap, MaskRotationSnap, MaskRotation)
}

// SetTranslation sets the translation and clears the other variant of the translation family
func (g *Geometry) SetTranslation(v Vec3, snap bool) {
	g.Translation = v
	g.Mask = g.Mask&^familyTrans | pick(snap, MaskTranslationSnap, MaskTranslation)
}

// Merge applies all properties present in other on top of g
func (g *Geometry) Merge(other Geometry) {
	other.Normalize()
	if other.Mask&familyScale != 0 {
		g.SetScale(other.Scale, other.Mask&MaskScaleSnap != 0)
	}
	if other.Mask&familyRot != 0 {
		g.SetRotation(other.Rotation, other.Mask&MaskRotationSnap != 0)
	}
	if other.Mask&familyTrans != 0 {
		g.SetTranslation(other.Translation, other.Mask&MaskTranslationSnap != 0)
	}
}

// Normalize drops the plain variant of a family when both variants are set, snap wins
func (g *Geometry) Normalize() {
	g.Mask &= maskAll
	for _, snap := range [...]Mask{MaskScaleSnap, MaskRotationSnap, MaskTranslationSnap} {
		if g.Mask&snap != 0 {
			g.Mask &^= snap << 1
		}
	}
}

// Empty reports whether no property is present
func (g Geometry) Empty() bool {
	return g.Mask&maskAll == 0
}

func pick(cond bool, a, b Mask) Mask {
	if cond {
		return a
	}
	return b
}

// SpatialRecord is one geometry update addressed to a handle
type SpatialRecord struct {
	Handle common.Handle
	Geometry
}

// size returns the encoded size of the record in bytes
func (r SpatialRecord) size() int {
	n := 4
	if r.Mask&familyScale != 0 {
		n += 12
	}
	if r.Mask&familyRot != 0 {
		n += 16
	}
	if r.Mask&familyTrans != 0 {
		n += 12
	}
	return n
}

// --------------------------------------------------------------------------
// Binary Frames
// --------------------------------------------------------------------------

// EncodeSpatial encodes the records into a binary updateSpatial frame
func EncodeSpatial(now time.Time, records []SpatialRecord) ([]byte, error) {
	header := strconv.AppendInt(nil, now.UnixMilli(), 10)
	header = append(header, common.FrameSep)
	header = append(header, common.CmdUpdateSpatial...)
	header = append(header, common.BinaryMarker)

	// Calculate total size needed
	size := len(header)
	for i := range records {
		records[i].Normalize()
		size += records[i].size()
	}

	result := make([]byte, size)
	pos := copy(result, header)

	for _, r := range records {
		if r.Handle > MaxHandle {
			return nil, fmt.Errorf("handle %d exceeds spatial record limit %d", r.Handle, MaxHandle)
		}
		binary.LittleEndian.PutUint32(result[pos:], uint32(r.Handle)<<maskBits|uint32(r.Mask))
		pos += 4

		if r.Mask&familyScale != 0 {
			pos = putFloats(result, pos, r.Scale[:])
		}
		if r.Mask&familyRot != 0 {
			pos = putFloats(result, pos, r.Rotation[:])
		}
		if r.Mask&familyTrans != 0 {
			pos = putFloats(result, pos, r.Translation[:])
		}
	}

	return result, nil
}

// DecodeBinaryFrame splits a binary frame into its timestamp, command and raw payload
func DecodeBinaryFrame(raw []byte) (sentAt int64, cmd common.Command, payload []byte, err error) {
	sep := bytes.IndexByte(raw, common.FrameSep)
	if sep < 0 {
		return 0, "", nil, fmt.Errorf("%w: binary frame without timestamp", common.ErrMalformedFrame)
	}
	marker := bytes.IndexByte(raw[sep+1:], common.BinaryMarker)
	if marker < 0 {
		return 0, "", nil, fmt.Errorf("%w: binary frame without data marker", common.ErrMalformedFrame)
	}
	marker += sep + 1

	sentAt, err = ParseInt(string(raw[:sep]))
	if err != nil {
		return 0, "", nil, err
	}
	cmd = common.Command(raw[sep+1 : marker])
	if cmd == "" {
		return 0, "", nil, fmt.Errorf("%w: binary frame without command", common.ErrMalformedFrame)
	}
	return sentAt, cmd, raw[marker+1:], nil
}

// DecodeSpatial decodes the payload of an updateSpatial frame. Every record is bounds
// checked, a truncated payload fails the whole frame.
func DecodeSpatial(payload []byte) ([]SpatialRecord, error) {
	// a record has at least its 4 byte header
	records := make([]SpatialRecord, 0, len(payload)/4)

	pos := 0
	for pos < len(payload) {
		if len(payload)-pos < 4 {
			return nil, fmt.Errorf("%w: truncated spatial record header at offset %d", common.ErrMalformedFrame, pos)
		}
		header := binary.LittleEndian.Uint32(payload[pos:])
		pos += 4

		r := SpatialRecord{Handle: common.Handle(header >> maskBits)}
		r.Mask = Mask(header) & maskAll

		need := r.size() - 4
		if len(payload)-pos < need {
			return nil, fmt.Errorf("%w: truncated spatial record for handle %d", common.ErrMalformedFrame, r.Handle)
		}
		if r.Mask&familyScale != 0 {
			pos = getFloats(payload, pos, r.Scale[:])
		}
		if r.Mask&familyRot != 0 {
			pos = getFloats(payload, pos, r.Rotation[:])
		}
		if r.Mask&familyTrans != 0 {
			pos = getFloats(payload, pos, r.Translation[:])
		}
		r.Normalize()
		records = append(records, r)
	}

	return records, nil
}

func putFloats(buf []byte, pos int, fs []float32) int {
	for _, f := range fs {
		binary.LittleEndian.PutUint32(buf[pos:], math.Float32bits(f))
		pos += 4
	}
	return pos
}

func getFloats(buf []byte, pos int, fs []float32) int {
	for i := range fs {
		fs[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
	}
	return pos
}
