package base64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBoundaries(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{nil, ""},
		{[]byte{0x00}, "AA=="},
		{[]byte{0x00, 0x00}, "AAA="},
		{[]byte{0x00, 0x00, 0x00}, "AAAA"},
		{[]byte{0xff}, "/w=="},
		{[]byte("Man"), "TWFu"},
		{[]byte("Ma"), "TWE="},
		{[]byte("M"), "TQ=="},
		{[]byte("any carnal pleasure."), "YW55IGNhcm5hbCBwbGVhc3VyZS4="},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Encode(c.in))
	}
}

func TestEncodeLengthProperty(t *testing.T) {
	for n := 0; n <= 100; n++ {
		in := make([]byte, n)
		for i := range in {
			in[i] = byte(i * 31)
		}
		got := Encode(in)
		assert.Equalf(t, (n+2)/3*4, len(got), "input length %d", n)
	}
}

func TestRoundTrip(t *testing.T) {
	for n := 0; n <= 64; n++ {
		in := make([]byte, n)
		for i := range in {
			in[i] = byte(255 - i)
		}
		dec, err := Decode(Encode(in))
		require.NoError(t, err)
		if n == 0 {
			assert.Empty(t, dec)
			continue
		}
		assert.Equal(t, in, dec)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, s := range []string{"A", "AB", "ABC", "AB=C", "====", "A===", "TWF!"} {
		_, err := Decode(s)
		assert.ErrorIsf(t, err, ErrBadInput, "input %q", s)
	}
}
