package rowcodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
)

var ErrCorrupt = errors.New("rowcodec: corrupt record")

// The journal stores row payloads in a compact binary form: an unsigned
// varint element count followed by length-prefixed strings. A payload
// serializes its columns as alternating name/value strings.

// EncodePayload serializes an ordered column set.
func EncodePayload(p types.Payload) []byte {
	b := binary.AppendUvarint(nil, uint64(len(p)))
	for _, col := range p {
		b = appendString(b, col.Name)
		b = appendString(b, col.Value)
	}
	return b
}

// DecodePayload reverses EncodePayload, preserving column order.
func DecodePayload(b []byte) (types.Payload, error) {
	r := bytes.NewReader(b)
	n, err := binary.ReadUvarint(r)
	if err != nil || n > uint64(r.Len()) {
		return nil, ErrCorrupt
	}

	p := make(types.Payload, 0, n)
	for i := uint64(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		value, err := readString(r)
		if err != nil {
			return nil, err
		}
		p = append(p, types.Column{Name: name, Value: value})
	}
	if r.Len() != 0 {
		return nil, ErrCorrupt
	}
	return p, nil
}

// EncodeStrings serializes a plain string list (used for column name sets).
func EncodeStrings(ss []string) []byte {
	b := binary.AppendUvarint(nil, uint64(len(ss)))
	for _, s := range ss {
		b = appendString(b, s)
	}
	return b
}

// DecodeStrings reverses EncodeStrings.
func DecodeStrings(b []byte) ([]string, error) {
	r := bytes.NewReader(b)
	n, err := binary.ReadUvarint(r)
	if err != nil || n > uint64(r.Len()) {
		return nil, ErrCorrupt
	}

	ss := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		ss = append(ss, s)
	}
	if r.Len() != 0 {
		return nil, ErrCorrupt
	}
	return ss, nil
}

func appendString(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", ErrCorrupt
	}
	if n > uint64(r.Len()) {
		return "", ErrCorrupt
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", ErrCorrupt
	}
	return string(buf), nil
}
