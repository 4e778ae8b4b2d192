package record

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Wire format, one row:
//
//	[0:2] column count (uint16 LE)
//	per column: [0] type tag, [1:] payload
//
// Tags mirror the storage engine's row codec (nil/bool/int64/float64/
// string/bytes), kept separate here because a Tuple belongs to the
// index layer, not to the older B+Tree-backed storage path.
const (
	tagNil byte = iota
	tagBool
	tagInt64
	tagFloat64
	tagString
	tagBytes
)

// Tuple is one logical row: an ordered list of column values.
type Tuple []any

// Marshal encodes a tuple into the page-resident wire format.
func Marshal(t Tuple) []byte {
	buf := make([]byte, 2, 2+len(t)*9)
	binary.LittleEndian.PutUint16(buf, uint16(len(t)))

	for _, v := range t {
		switch val := v.(type) {
		case nil:
			buf = append(buf, tagNil)
		case bool:
			b := byte(0)
			if val {
				b = 1
			}
			buf = append(buf, tagBool, b)
		case int:
			buf = appendInt64(buf, int64(val))
		case int64:
			buf = appendInt64(buf, val)
		case float64:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(val))
			buf = append(buf, tagFloat64)
			buf = append(buf, b[:]...)
		case string:
			buf = appendBlob(buf, tagString, []byte(val))
		case []byte:
			buf = appendBlob(buf, tagBytes, val)
		default:
			buf = appendBlob(buf, tagString, []byte(fmt.Sprint(val)))
		}
	}
	return buf
}

func appendInt64(buf []byte, v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf = append(buf, tagInt64)
	return append(buf, b[:]...)
}

func appendBlob(buf []byte, tag byte, v []byte) []byte {
	var lb [2]byte
	binary.LittleEndian.PutUint16(lb[:], uint16(len(v)))
	buf = append(buf, tag)
	buf = append(buf, lb[:]...)
	return append(buf, v...)
}

// Unmarshal decodes a tuple from its wire format.
func Unmarshal(data []byte) (Tuple, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("record: tuple data too short")
	}
	n := int(binary.LittleEndian.Uint16(data))
	off := 2
	out := make(Tuple, n)

	for i := 0; i < n; i++ {
		if off >= len(data) {
			return nil, fmt.Errorf("record: truncated tuple at column %d", i)
		}
		tag := data[off]
		off++
		switch tag {
		case tagNil:
			out[i] = nil
		case tagBool:
			if off >= len(data) {
				return nil, fmt.Errorf("record: truncated bool at column %d", i)
			}
			out[i] = data[off] != 0
			off++
		case tagInt64:
			if off+8 > len(data) {
				return nil, fmt.Errorf("record: truncated int64 at column %d", i)
			}
			out[i] = int64(binary.LittleEndian.Uint64(data[off : off+8]))
			off += 8
		case tagFloat64:
			if off+8 > len(data) {
				return nil, fmt.Errorf("record: truncated float64 at column %d", i)
			}
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8]))
			off += 8
		case tagString, tagBytes:
			if off+2 > len(data) {
				return nil, fmt.Errorf("record: truncated length at column %d", i)
			}
			l := int(binary.LittleEndian.Uint16(data[off : off+2]))
			off += 2
			if off+l > len(data) {
				return nil, fmt.Errorf("record: truncated payload at column %d", i)
			}
			if tag == tagString {
				out[i] = string(data[off : off+l])
			} else {
				dst := make([]byte, l)
				copy(dst, data[off:off+l])
				out[i] = dst
			}
			off += l
		default:
			return nil, fmt.Errorf("record: unknown tag 0x%02x at column %d", tag, i)
		}
	}
	return out, nil
}
