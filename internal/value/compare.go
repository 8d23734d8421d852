package value

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// rank orders value kinds: Null < Bool < numbers < String.
func rank(v Value) int {
	switch v.(type) {
	case nil, Null:
		return 0
	case Bool:
		return 1
	case Int, Float:
		return 2
	case String:
		return 3
	default:
		return 4
	}
}

// Compare returns a total order over values. Ints and Floats compare
// numerically; other kinds compare by kind rank first.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case nil, Null:
		return 0
	case Bool:
		y := b.(Bool)
		switch {
		case x == y:
			return 0
		case !bool(x):
			return -1
		default:
			return 1
		}
	case Int:
		switch y := b.(type) {
		case Int:
			return cmp.Compare(x, y)
		case Float:
			return cmp.Compare(float64(x), float64(y))
		}
	case Float:
		switch y := b.(type) {
		case Int:
			return cmp.Compare(float64(x), float64(y))
		case Float:
			return cmp.Compare(x, y)
		}
	case String:
		return cmp.Compare(x, b.(String))
	}
	return 0
}

// Equal reports whether a and b are the same value. Int(1) equals Float(1).
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// Truthy interprets a value as a boolean predicate result.
// Only Bool values are accepted; NULL is false.
func Truthy(v Value) (bool, error) {
	switch val := v.(type) {
	case nil, Null:
		return false, nil
	case Bool:
		return bool(val), nil
	default:
		return false, fmt.Errorf("expected boolean, got %s", v)
	}
}

// Digest accumulates values into a 64-bit xxhash digest, used for hash
// indexes over row keys. Values that are Equal produce the same digest.
type Digest struct {
	h   *xxhash.Digest
	buf [9]byte
}

// NewDigest creates an empty Digest.
func NewDigest() *Digest {
	return &Digest{h: xxhash.New()}
}

// Add mixes one value into the digest.
func (d *Digest) Add(v Value) {
	switch val := v.(type) {
	case nil, Null:
		d.buf[0] = 0
		_, _ = d.h.Write(d.buf[:1])
	case Bool:
		d.buf[0] = 1
		d.buf[1] = 0
		if val {
			d.buf[1] = 1
		}
		_, _ = d.h.Write(d.buf[:2])
	case Int:
		d.addNumber(float64(val), int64(val), true)
	case Float:
		f := float64(val)
		if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
			d.addNumber(f, int64(f), true)
		} else {
			d.addNumber(f, 0, false)
		}
	case String:
		d.buf[0] = 3
		_, _ = d.h.Write(d.buf[:1])
		_, _ = d.h.WriteString(string(val))
		d.buf[0] = 0xff
		_, _ = d.h.Write(d.buf[:1])
	}
}

func (d *Digest) addNumber(f float64, i int64, integral bool) {
	d.buf[0] = 2
	if integral {
		binary.LittleEndian.PutUint64(d.buf[1:], uint64(i))
	} else {
		binary.LittleEndian.PutUint64(d.buf[1:], math.Float64bits(f))
		d.buf[0] = 4
	}
	_, _ = d.h.Write(d.buf[:])
}

// Sum64 returns the digest value.
func (d *Digest) Sum64() uint64 {
	return d.h.Sum64()
}

// Reset clears the digest for reuse.
func (d *Digest) Reset() {
	d.h.Reset()
}
