// Package digest implements the SHA-1 construction used to derive the
// WebSocket handshake accept token. The digest is computed from first
// principles so the handshake has no dependency on a platform crypto stack.
package digest

import "encoding/binary"

// Size is the SHA-1 digest length in bytes.
const Size = 20

// BlockSize is the SHA-1 compression block length in bytes.
const BlockSize = 64

// SHA1 is a streaming SHA-1 state. The zero value is not usable; call New.
type SHA1 struct {
	h     [5]uint32
	block [BlockSize]byte
	fill  int
	len   uint64
}

// New returns a digest initialized with the SHA-1 IV.
func New() *SHA1 {
	s := &SHA1{}
	s.Reset()
	return s
}

// Reset restores the initial state.
func (s *SHA1) Reset() {
	s.h = [5]uint32{0x67452301, 0xEFCDAB89, 0x98BADCFE, 0x10325476, 0xC3D2E1F0}
	s.fill = 0
	s.len = 0
}

// Write absorbs p in arbitrary chunk sizes. A partial block is carried
// across calls.
func (s *SHA1) Write(p []byte) {
	s.len += uint64(len(p))
	if s.fill > 0 {
		n := copy(s.block[s.fill:], p)
		s.fill += n
		p = p[n:]
		if s.fill < BlockSize {
			return
		}
		s.compress(s.block[:])
		s.fill = 0
	}
	for len(p) >= BlockSize {
		s.compress(p[:BlockSize])
		p = p[BlockSize:]
	}
	if len(p) > 0 {
		s.fill = copy(s.block[:], p)
	}
}

// Sum pads the absorbed input and returns the 20-byte digest. The receiver
// state is consumed; Reset before reuse.
func (s *SHA1) Sum() [Size]byte {
	bitLen := s.len * 8

	// One bit, then zeros up to 56 mod 64, then the 64-bit big-endian
	// bit count. Padding goes through Write so a chunk boundary inside the
	// trailer is carried the same way as any other partial block.
	s.Write([]byte{0x80})
	var zero [BlockSize]byte
	pad := (56 - int(s.len%BlockSize) + BlockSize) % BlockSize
	s.Write(zero[:pad])

	var trailer [8]byte
	binary.BigEndian.PutUint64(trailer[:], bitLen)
	s.Write(trailer[:])

	var out [Size]byte
	for i, v := range s.h {
		binary.BigEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// Sum1 computes the digest of data in one call.
func Sum1(data []byte) [Size]byte {
	s := New()
	s.Write(data)
	return s.Sum()
}

func (s *SHA1) compress(block []byte) {
	var w [80]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(block[i*4:])
	}
	for i := 16; i < 80; i++ {
		t := w[i-3] ^ w[i-8] ^ w[i-14] ^ w[i-16]
		w[i] = t<<1 | t>>31
	}

	a, b, c, d, e := s.h[0], s.h[1], s.h[2], s.h[3], s.h[4]
	for i := 0; i < 80; i++ {
		var f, k uint32
		switch {
		case i < 20:
			f = (b & c) | (^b & d)
			k = 0x5A827999
		case i < 40:
			f = b ^ c ^ d
			k = 0x6ED9EBA1
		case i < 60:
			f = (b & c) | (b & d) | (c & d)
			k = 0x8F1BBCDC
		default:
			f = b ^ c ^ d
			k = 0xCA62C1D6
		}
		t := (a<<5 | a>>27) + f + e + k + w[i]
		e = d
		d = c
		c = b<<30 | b>>2
		b = a
		a = t
	}

	s.h[0] += a
	s.h[1] += b
	s.h[2] += c
	s.h[3] += d
	s.h[4] += e
}
