// Package hashid provides the canonical encoder and content-hash derivation
// shared by every other package that needs a stable identity for a value:
// node definitions (internal/node), generator identity (internal/generator),
// and row primary keys (internal/node's Load).
//
// The encoder is a small tagged-variant serializer, not a general codec: it
// only needs to produce bytes that are stable across processes and Go
// versions for the value shapes dbgen actually declares (nil, bool, numbers,
// strings, byte slices, times, and ordered/unordered collections of the
// above). Map keys are sorted so that two maps built in different iteration
// orders canonicalize identically.
package hashid

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Tag bytes prefix every encoded value so that two structurally different
// values (e.g. the string "1" and the integer 1) never collide.
const (
	tagNull byte = iota
	tagBool
	tagInt
	tagFloat
	tagString
	tagBytes
	tagTime
	tagSlice
	tagMap
)

// Canonicalize serializes v into a deterministic byte encoding. The same
// logical value always produces the same bytes regardless of map iteration
// order, numeric Go type (int vs int64 vs float64 holding a whole number),
// or process.
func Canonicalize(v interface{}) ([]byte, error) {
	var buf []byte
	buf, err := appendValue(buf, v)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func appendValue(buf []byte, v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return append(buf, tagNull), nil
	case bool:
		b := byte(0)
		if x {
			b = 1
		}
		return append(buf, tagBool, b), nil
	case string:
		return appendString(buf, tagString, x), nil
	case []byte:
		return appendString(buf, tagBytes, string(x)), nil
	case time.Time:
		return appendString(buf, tagTime, x.UTC().Format(time.RFC3339Nano)), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return appendString(buf, tagInt, fmt.Sprintf("%d", x)), nil
	case float32, float64:
		f, _ := x.(float64)
		if f32, ok := x.(float32); ok {
			f = float64(f32)
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return appendString(buf, tagInt, fmt.Sprintf("%d", int64(f))), nil
		}
		return appendString(buf, tagFloat, fmt.Sprintf("%v", x)), nil
	case []string:
		items := make([]interface{}, len(x))
		for i, s := range x {
			items[i] = s
		}
		return appendValue(buf, items)
	case []interface{}:
		buf = append(buf, tagSlice)
		buf = appendLen(buf, len(x))
		for _, item := range x {
			var err error
			buf, err = appendValue(buf, item)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case map[string]interface{}:
		buf = append(buf, tagMap)
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = appendLen(buf, len(keys))
		for _, k := range keys {
			buf = appendString(buf, tagString, k)
			var err error
			buf, err = appendValue(buf, x[k])
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("hashid: cannot canonicalize value of type %T", v)
	}
}

func appendString(buf []byte, tag byte, s string) []byte {
	buf = append(buf, tag)
	buf = appendLen(buf, len(s))
	return append(buf, s...)
}

func appendLen(buf []byte, n int) []byte {
	var tmp [8]byte
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(n & 0xff)
		n >>= 8
	}
	return append(buf, tmp[:]...)
}
