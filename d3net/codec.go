// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package d3net

// Bits are numbered LSB-first across the concatenated buffer: bit b lives in
// word b/16 at position b%16.

const wordBits = 16

// Kind is the encoding of a Field.
type Kind uint8

const (
	KindBit Kind = iota
	KindUint
	KindSint
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindBit:
		return "bit"
	case KindUint:
		return "uint"
	case KindSint:
		return "sint"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Field describes a named value within a register buffer.
type Field struct {
	Name   string
	Offset int
	Length int
	Kind   Kind
}

func bit(name string, offset int) Field { return Field{name, offset, 1, KindBit} }

func uintField(name string, offset, length int) Field {
	return Field{name, offset, length, KindUint}
}

func sintField(name string, offset, length int) Field {
	return Field{name, offset, length, KindSint}
}

func enumField(name string, offset, length int) Field {
	return Field{name, offset, length, KindEnum}
}

// Raw returns the field's unsigned bit pattern. Bit and enum fields are
// returned as their raw integer; signed fields as the undecoded pattern.
func (f Field) Raw(buf []uint16) (uint64, error) {
	return GetUint(buf, f.Offset, f.Length)
}

// Int decodes a signed field, any other kind is decoded unsigned.
func (f Field) Int(buf []uint16) (int64, error) {
	if f.Kind == KindSint {
		return GetSint(buf, f.Offset, f.Length)
	}
	v, err := GetUint(buf, f.Offset, f.Length)
	return int64(v), err
}

// SetInt encodes v according to the field's kind.
func (f Field) SetInt(buf []uint16, v int64) error {
	switch f.Kind {
	case KindSint:
		return SetSint(buf, f.Offset, f.Length, v)
	default:
		if v < 0 {
			return &RangeError{Start: f.Offset, Length: f.Length, Bits: len(buf) * wordBits, Reason: "negative value for unsigned field"}
		}
		return SetUint(buf, f.Offset, f.Length, uint64(v))
	}
}

func checkRange(buf []uint16, start, length int) error {
	bits := len(buf) * wordBits
	if start < 0 || length < 1 || length > 64 || start+length > bits {
		return &RangeError{Start: start, Length: length, Bits: bits}
	}
	return nil
}

// GetBit returns the bit at index b.
func GetBit(buf []uint16, b int) (bool, error) {
	if err := checkRange(buf, b, 1); err != nil {
		return false, err
	}
	return buf[b/wordBits]&(1<<(b%wordBits)) != 0, nil
}

// GetUint composes length bits starting at start, least significant first.
func GetUint(buf []uint16, start, length int) (uint64, error) {
	if err := checkRange(buf, start, length); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < length; i++ {
		b := start + i
		if buf[b/wordBits]&(1<<(b%wordBits)) != 0 {
			v |= 1 << i
		}
	}
	return v, nil
}

// GetSint decodes a sign-magnitude field: the low length-1 bits are the
// magnitude and the final bit is the sign. A set sign over a zero magnitude
// decodes to 0.
func GetSint(buf []uint16, start, length int) (int64, error) {
	if err := checkRange(buf, start, length); err != nil {
		return 0, err
	}
	if length < 2 {
		return 0, &RangeError{Start: start, Length: length, Bits: len(buf) * wordBits, Reason: "signed field needs at least 2 bits"}
	}
	mag, _ := GetUint(buf, start, length-1)
	neg, _ := GetBit(buf, start+length-1)
	if neg {
		return -int64(mag), nil
	}
	return int64(mag), nil
}

// SetBit sets or clears the bit at index b.
func SetBit(buf []uint16, b int, v bool) error {
	if err := checkRange(buf, b, 1); err != nil {
		return err
	}
	if v {
		buf[b/wordBits] |= 1 << (b % wordBits)
	} else {
		buf[b/wordBits] &^= 1 << (b % wordBits)
	}
	return nil
}

// SetUint clears length bits at start and writes v into them.
func SetUint(buf []uint16, start, length int, v uint64) error {
	if err := checkRange(buf, start, length); err != nil {
		return err
	}
	if length < 64 && v>>length != 0 {
		return &RangeError{Start: start, Length: length, Bits: len(buf) * wordBits, Reason: "value does not fit"}
	}
	for i := 0; i < length; i++ {
		b := start + i
		mask := uint16(1) << (b % wordBits)
		if v&(1<<i) != 0 {
			buf[b/wordBits] |= mask
		} else {
			buf[b/wordBits] &^= mask
		}
	}
	return nil
}

// SetSint writes v in sign-magnitude form. Zero is always written with a
// clear sign bit.
func SetSint(buf []uint16, start, length int, v int64) error {
	if err := checkRange(buf, start, length); err != nil {
		return err
	}
	if length < 2 {
		return &RangeError{Start: start, Length: length, Bits: len(buf) * wordBits, Reason: "signed field needs at least 2 bits"}
	}
	mag := uint64(v)
	if v < 0 {
		mag = uint64(-v)
	}
	if err := SetUint(buf, start, length-1, mag); err != nil {
		return err
	}
	return SetBit(buf, start+length-1, v < 0)
}
