package hash

import (
	"crypto/sha256"
	"encoding/binary"
)

// Builder builds a canonical byte sequence then hashes it to Hash32 (sha256).
//
// Encoding rules:
//   - Fixed-width integers: big-endian
//   - Bytes/string: u32(len) big-endian + bytes
//
// This is the one place that defines canonical content identity: relay
// messageIds, transaction hashes and KYC content hashes all come from here,
// so two networks computing the hash of the same logical value always agree.
type Builder struct {
	b []byte
}

func NewBuilder() *Builder { return &Builder{b: make([]byte, 0, 128)} }

func (d *Builder) Reset() { d.b = d.b[:0] }

func (d *Builder) Bytes() []byte { return append([]byte(nil), d.b...) }

func (d *Builder) PutU64(v uint64) *Builder {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	d.b = append(d.b, buf[:]...)
	return d
}

func (d *Builder) PutI64(v int64) *Builder { return d.PutU64(uint64(v)) }

func (d *Builder) PutBool(v bool) *Builder {
	if v {
		d.b = append(d.b, 1)
	} else {
		d.b = append(d.b, 0)
	}
	return d
}

// PutBytes appends: u32(len) + bytes
func (d *Builder) PutBytes(p []byte) *Builder {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(p)))
	d.b = append(d.b, buf[:]...)
	d.b = append(d.b, p...)
	return d
}

func (d *Builder) PutString(s string) *Builder { return d.PutBytes([]byte(s)) }

func (d *Builder) PutHash(h Hash32) *Builder {
	d.b = append(d.b, h[:]...)
	return d
}

func (d *Builder) Sum32() Hash32 {
	return sha256.Sum256(d.b)
}

// Sum hashes raw bytes directly; used for content-addressed document blobs.
func Sum(p []byte) Hash32 {
	return sha256.Sum256(p)
}
