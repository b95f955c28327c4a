package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/unkn0wn-root/arcache/entry"
)

const (
	version          byte = 1
	kindObject       byte = 1
	kindInvalidation byte = 2

	flagHard byte = 1 << 0

	hdrLen          = 4 + 1 + 1
	invalidationLen = hdrLen + 8 + 8 + 1 + 8 + 8
)

var (
	ErrCorrupt     = errors.New("arcache: corrupt entry")
	ErrUnsupported = errors.New("arcache: unsupported entry type")
	magic4         = [...]byte{'A', 'R', 'C', 'E'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func header(b []byte, kind byte) bool {
	return len(b) >= hdrLen && hasMagic(b) && b[4] == version && b[5] == kind
}

// IsFrame reports whether b starts with a header this package understands.
func IsFrame(b []byte) bool {
	return len(b) >= hdrLen && hasMagic(b) && b[4] == version &&
		(b[5] == kindObject || b[5] == kindInvalidation)
}

// Object:
//
//	magic(4) | ver(1) | kind(1=object) | ts(i64 be) | ttl(i64 be) | n(u16 be)
//	keyLen(u16 be) | key(keyLen) * n
//	vlen(u32 be) | payload(vlen)
func EncodeObject(o *entry.Object) ([]byte, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: nil object", ErrUnsupported)
	}
	if len(o.InvalidationKeys) > math.MaxUint16 {
		return nil, fmt.Errorf("arcache: too many invalidation keys (%d)", len(o.InvalidationKeys))
	}
	if uint64(len(o.Value)) > math.MaxUint32 {
		return nil, fmt.Errorf("arcache: value too large (%d bytes)", len(o.Value))
	}

	total := hdrLen + 8 + 8 + 2 + 4 + len(o.Value)
	for _, k := range o.InvalidationKeys {
		if l := len(k); l == 0 || l > math.MaxUint16 {
			return nil, fmt.Errorf("arcache: invalid invalidation key length %d", l)
		}
		total += 2 + len(k)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindObject)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(o.TimestampMillis))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(o.ExpirationTTLMillis))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(o.InvalidationKeys)))
	buf.Write(u2[:])
	for _, k := range o.InvalidationKeys {
		binary.BigEndian.PutUint16(u2[:], uint16(len(k)))
		buf.Write(u2[:])
		buf.WriteString(k)
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(o.Value)))
	buf.Write(u4[:])
	buf.Write(o.Value)
	return buf.Bytes(), nil
}

// DecodeObject parses an object frame. The returned value does not alias b.
func DecodeObject(b []byte) (*entry.Object, error) {
	if len(b) < hdrLen+8+8+2 || !header(b, kindObject) {
		return nil, ErrCorrupt
	}
	off := hdrLen

	o := &entry.Object{}
	o.TimestampMillis = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	o.ExpirationTTLMillis = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if n > 0 {
		o.InvalidationKeys = make([]string, 0, n)
	}
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return nil, ErrCorrupt
		}
		klen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if klen <= 0 || klen > len(b)-off {
			return nil, ErrCorrupt
		}
		o.InvalidationKeys = append(o.InvalidationKeys, string(b[off:off+klen]))
		off += klen
	}

	if off+4 > len(b) {
		return nil, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// trailing bytes are corruption too
	if vlen < 0 || vlen != len(b)-off {
		return nil, ErrCorrupt
	}
	o.Value = append([]byte(nil), b[off:off+vlen]...)
	return o, nil
}

// Invalidation:
//
//	magic(4) | ver(1) | kind(2=invalidation) | ts(i64 be) | window(i64 be)
//	flags(1) | lastHard(i64 be) | lastSoft(i64 be)
func EncodeInvalidation(inv *entry.Invalidation) []byte {
	b := make([]byte, invalidationLen)
	copy(b, magic4[:])
	b[4] = version
	b[5] = kindInvalidation

	off := hdrLen
	binary.BigEndian.PutUint64(b[off:], uint64(inv.InvalidationTimestampMillis))
	off += 8
	binary.BigEndian.PutUint64(b[off:], uint64(inv.InvalidationWindowMillis))
	off += 8
	if inv.Hard {
		b[off] = flagHard
	}
	off++
	binary.BigEndian.PutUint64(b[off:], uint64(inv.LastHardInvalidationTimestampMillis))
	off += 8
	binary.BigEndian.PutUint64(b[off:], uint64(inv.LastSoftInvalidationTimestampMillis))
	return b
}

func DecodeInvalidation(b []byte) (*entry.Invalidation, error) {
	if len(b) != invalidationLen || !header(b, kindInvalidation) {
		return nil, ErrCorrupt
	}
	off := hdrLen
	inv := &entry.Invalidation{}
	inv.InvalidationTimestampMillis = int64(binary.BigEndian.Uint64(b[off:]))
	off += 8
	inv.InvalidationWindowMillis = int64(binary.BigEndian.Uint64(b[off:]))
	off += 8
	flags := b[off]
	if flags&^flagHard != 0 {
		return nil, ErrCorrupt
	}
	inv.Hard = flags&flagHard != 0
	off++
	inv.LastHardInvalidationTimestampMillis = int64(binary.BigEndian.Uint64(b[off:]))
	off += 8
	inv.LastSoftInvalidationTimestampMillis = int64(binary.BigEndian.Uint64(b[off:]))
	return inv, nil
}

// Marshal frames one of the entry types. Anything else is ErrUnsupported.
func Marshal(v any) ([]byte, error) {
	switch e := v.(type) {
	case *entry.Object:
		return EncodeObject(e)
	case *entry.Invalidation:
		if e == nil {
			return nil, fmt.Errorf("%w: nil invalidation", ErrUnsupported)
		}
		return EncodeInvalidation(e), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
}

// Unmarshal decodes a frame produced by Marshal.
func Unmarshal(b []byte) (any, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return nil, ErrCorrupt
	}
	switch b[5] {
	case kindObject:
		return DecodeObject(b)
	case kindInvalidation:
		return DecodeInvalidation(b)
	default:
		return nil, ErrCorrupt
	}
}

// Load is what byte-oriented backends hand back to the client: the decoded
// entry, or the raw bytes when they are not a valid frame. The client treats
// the latter as a wrong-typed value.
func Load(b []byte) any {
	v, err := Unmarshal(b)
	if err != nil {
		return b
	}
	return v
}
