package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrMalformedKey = errors.New("storage: malformed key")

// KeyBuilder encodes an ordered tuple into a byte key. Strings are prefixed
// with their uvarint length so that no tuple is a byte prefix of a different
// tuple with a longer string component; integers are fixed-width big-endian.
type KeyBuilder struct {
	buf []byte
}

// Key starts a new tuple key.
func Key() *KeyBuilder {
	return &KeyBuilder{buf: make([]byte, 0, 32)}
}

func (k *KeyBuilder) String(s string) *KeyBuilder {
	k.buf = binary.AppendUvarint(k.buf, uint64(len(s)))
	k.buf = append(k.buf, s...)
	return k
}

func (k *KeyBuilder) Uint64(v uint64) *KeyBuilder {
	k.buf = binary.BigEndian.AppendUint64(k.buf, v)
	return k
}

func (k *KeyBuilder) Uint8(v uint8) *KeyBuilder {
	k.buf = append(k.buf, v)
	return k
}

// Bytes returns the encoded key.
func (k *KeyBuilder) Bytes() []byte {
	out := make([]byte, len(k.buf))
	copy(out, k.buf)
	return out
}

// KeyReader decodes a key produced by KeyBuilder, component by component.
type KeyReader struct {
	buf []byte
	err error
}

func ReadKey(key []byte) *KeyReader {
	return &KeyReader{buf: key}
}

func (r *KeyReader) String() string {
	if r.err != nil {
		return ""
	}
	n, size := binary.Uvarint(r.buf)
	if size <= 0 || uint64(len(r.buf)-size) < n {
		r.err = fmt.Errorf("%w: bad string component", ErrMalformedKey)
		return ""
	}
	s := string(r.buf[size : size+int(n)])
	r.buf = r.buf[size+int(n):]
	return s
}

func (r *KeyReader) Uint64() uint64 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 8 {
		r.err = fmt.Errorf("%w: short uint64 component", ErrMalformedKey)
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[:8])
	r.buf = r.buf[8:]
	return v
}

func (r *KeyReader) Uint8() uint8 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 1 {
		r.err = fmt.Errorf("%w: short uint8 component", ErrMalformedKey)
		return 0
	}
	v := r.buf[0]
	r.buf = r.buf[1:]
	return v
}

// Err reports the first decoding error, or an error if bytes remain.
func (r *KeyReader) Err() error {
	if r.err != nil {
		return r.err
	}
	if len(r.buf) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedKey, len(r.buf))
	}
	return nil
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil when no such key exists (empty or all 0xff prefix).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
