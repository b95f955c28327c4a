package codec

import (
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type user struct {
	ID    string    `json:"id" msgpack:"id" cbor:"id"`
	Name  string    `json:"name" msgpack:"name" cbor:"name"`
	Seen  time.Time `json:"seen" msgpack:"seen" cbor:"seen"`
	Roles []string  `json:"roles" msgpack:"roles" cbor:"roles"`
}

func TestStructCodecs(t *testing.T) {
	in := user{ID: "1", Name: "Ada", Seen: time.Unix(1700000000, 0).UTC(), Roles: []string{"admin"}}
	codecs := map[string]Codec[user]{
		"json":    JSON[user]{},
		"msgpack": Msgpack[user]{},
		"cbor":    MustCBOR[user](true),
	}
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			if got := NameOf(c); got != name {
				t.Fatalf("NameOf=%q want %q", got, name)
			}
			b, err := c.Encode(in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			out, err := c.Decode(b)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if out.ID != in.ID || out.Name != in.Name || !out.Seen.Equal(in.Seen) || len(out.Roles) != 1 {
				t.Fatalf("mismatch: got %+v want %+v", out, in)
			}
			if _, err := c.Decode([]byte{0xff, 0x00, 0x13}); err == nil {
				t.Fatalf("expected decode error on garbage")
			} else if !strings.HasPrefix(err.Error(), "codec "+name) {
				t.Fatalf("error should name the codec: %v", err)
			}
		})
	}
}

func TestDeterministicCBOR(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	a, _ := c.Encode(map[string]int{"b": 2, "a": 1, "c": 3})
	b, _ := c.Encode(map[string]int{"c": 3, "a": 1, "b": 2})
	if string(a) != string(b) {
		t.Fatalf("deterministic CBOR produced different bytes")
	}
}

func TestLimitCodec(t *testing.T) {
	c := LimitCodec[string]{Inner: String{}, MaxDecode: 4, MaxEncode: 3}
	if c.Name() != "limit(string)" {
		t.Fatalf("Name=%q", c.Name())
	}
	if _, err := c.Encode("abcd"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Encode err=%v want ErrTooLarge", err)
	}
	if b, err := c.Encode("abc"); err != nil || string(b) != "abc" {
		t.Fatalf("Encode = (%q, %v)", b, err)
	}
	if _, err := c.Decode([]byte("abcde")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Decode err=%v want ErrTooLarge", err)
	}
	if v, err := c.Decode([]byte("abcd")); err != nil || v != "abcd" {
		t.Fatalf("Decode = (%q, %v)", v, err)
	}

	open := LimitCodec[[]byte]{Inner: Bytes{}}
	if _, err := open.Decode(make([]byte, 1<<16)); err != nil {
		t.Fatalf("limits <= 0 must be disabled: %v", err)
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("hello"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m, err := c.Decode(b)
	if err != nil || m.GetValue() != "hello" {
		t.Fatalf("Decode = (%v, %v)", m, err)
	}

	var bare Protobuf[*wrapperspb.StringValue]
	if _, err := bare.Decode(b); err == nil {
		t.Fatalf("expected error without constructor")
	}
}
