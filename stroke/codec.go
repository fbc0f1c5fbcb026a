package stroke

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
)

// RecordSize is the length of an encoded Drawable.
//
//	0      size
//	1..3   red, green, blue
//	4..11  x1, y1, x2, y2 as little-endian uint16
const RecordSize = 12

var ErrRecordSize = errors.New("stroke: record must be 12 bytes")

var (
	_ encoding.BinaryMarshaler   = Drawable{}
	_ encoding.BinaryUnmarshaler = (*Drawable)(nil)
)

// Encode returns the wire record for d.
func Encode(d Drawable) []byte {
	return AppendEncode(make([]byte, 0, RecordSize), d)
}

// AppendEncode appends the wire record for d to b.
func AppendEncode(b []byte, d Drawable) []byte {
	b = append(b, d.Brush.Size, d.Brush.Color.R, d.Brush.Color.G, d.Brush.Color.B)
	b = binary.LittleEndian.AppendUint16(b, d.Stroke.X1)
	b = binary.LittleEndian.AppendUint16(b, d.Stroke.Y1)
	b = binary.LittleEndian.AppendUint16(b, d.Stroke.X2)
	b = binary.LittleEndian.AppendUint16(b, d.Stroke.Y2)
	return b
}

// Decode parses a wire record. Channels are read back in the order Encode
// writes them.
func Decode(b []byte) (Drawable, error) {
	if len(b) != RecordSize {
		return Drawable{}, fmt.Errorf("%w: got %d", ErrRecordSize, len(b))
	}

	return Drawable{
		Brush: Brush{
			Size:  b[0],
			Color: Color{R: b[1], G: b[2], B: b[3]},
		},
		Stroke: Stroke{
			X1: binary.LittleEndian.Uint16(b[4:6]),
			Y1: binary.LittleEndian.Uint16(b[6:8]),
			X2: binary.LittleEndian.Uint16(b[8:10]),
			Y2: binary.LittleEndian.Uint16(b[10:12]),
		},
	}, nil
}

func (d Drawable) MarshalBinary() ([]byte, error) {
	return Encode(d), nil
}

func (d *Drawable) UnmarshalBinary(data []byte) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}

	*d = v
	return nil
}
