// Package codec turns cached values into the bytes carried by entry.Object
// and back.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Named is implemented by codecs that report a short name for logs.
type Named interface {
	Name() string
}

// NameOf returns c's name, or its Go type when it does not implement Named.
func NameOf(c any) string {
	if n, ok := c.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", c)
}

func wrap(name, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("codec %s: %s: %w", name, op, err)
}
