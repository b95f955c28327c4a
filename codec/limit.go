package codec

import (
	"errors"
	"fmt"
)

var ErrTooLarge = errors.New("codec: payload too large")

// LimitCodec wraps another codec and bounds payload sizes in both
// directions. A limit <= 0 disables that side.
//
// Typical use: protect against oversized inputs coming from a shared cache,
// and keep a single huge value from landing in the backend.
type LimitCodec[V any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec[V]
	// MaxDecode bounds incoming payloads; Inner is not invoked above it.
	MaxDecode int
	// MaxEncode bounds Inner's output.
	MaxEncode int
}

func (c LimitCodec[V]) Name() string { return "limit(" + NameOf(c.Inner) + ")" }

func (c LimitCodec[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, fmt.Errorf("%w: encoded %d > %d", ErrTooLarge, len(b), c.MaxEncode)
	}
	return b, nil
}

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
