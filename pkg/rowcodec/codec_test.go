package rowcodec

import (
	"errors"
	"testing"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
)

func TestPayloadRoundTrip(t *testing.T) {
	tests := []types.Payload{
		nil,
		{{Name: "time", Value: "2024-04-12 15:59:23+02"}, {Name: "value", Value: "1"}},
		{{Name: "empty", Value: ""}},
		{{Name: "weird", Value: "a,b:c\nd"}},
	}

	for _, p := range tests {
		decoded, err := DecodePayload(EncodePayload(p))
		if err != nil {
			t.Fatalf("DecodePayload failed for %v: %v", p, err)
		}
		if len(decoded) != len(p) {
			t.Fatalf("decoded %v, want %v", decoded, p)
		}
		for i := range p {
			if decoded[i] != p[i] {
				t.Fatalf("column %d = %+v, want %+v", i, decoded[i], p[i])
			}
		}
	}
}

func TestStringsRoundTrip(t *testing.T) {
	cols := []string{"time", "value"}
	decoded, err := DecodeStrings(EncodeStrings(cols))
	if err != nil {
		t.Fatalf("DecodeStrings failed: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != "time" || decoded[1] != "value" {
		t.Fatalf("decoded %v, want %v", decoded, cols)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	good := EncodePayload(types.Payload{{Name: "a", Value: "b"}})

	cases := [][]byte{
		good[:len(good)-1],     // truncated value
		{0xff, 0xff, 0xff},     // absurd count
		append(good, 0x00),     // trailing garbage
	}
	for _, b := range cases {
		if _, err := DecodePayload(b); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("DecodePayload(%v): got %v, want ErrCorrupt", b, err)
		}
	}

	if _, err := DecodeStrings([]byte{0x05}); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("DecodeStrings: got %v, want ErrCorrupt", err)
	}
}
