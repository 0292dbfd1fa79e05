// Package base64 encodes binary data with the standard 64-character
// alphabet. It exists so the handshake accept token has no dependency
// outside this repository's wire layer.
package base64

import "errors"

// ErrBadInput is returned by Decode for malformed input.
var ErrBadInput = errors.New("base64: malformed input")

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Encode maps every 3 input bytes to 4 alphabet characters, right-padding
// with '=' when the input length is not a multiple of 3.
func Encode(src []byte) string {
	if len(src) == 0 {
		return ""
	}

	out := make([]byte, 0, (len(src)+2)/3*4)
	for len(src) >= 3 {
		v := uint32(src[0])<<16 | uint32(src[1])<<8 | uint32(src[2])
		out = append(out,
			alphabet[v>>18&0x3f],
			alphabet[v>>12&0x3f],
			alphabet[v>>6&0x3f],
			alphabet[v&0x3f],
		)
		src = src[3:]
	}

	switch len(src) {
	case 1:
		v := uint32(src[0]) << 16
		out = append(out, alphabet[v>>18&0x3f], alphabet[v>>12&0x3f], '=', '=')
	case 2:
		v := uint32(src[0])<<16 | uint32(src[1])<<8
		out = append(out, alphabet[v>>18&0x3f], alphabet[v>>12&0x3f], alphabet[v>>6&0x3f], '=')
	}
	return string(out)
}

// Decode reverses Encode. Input length must be a multiple of 4 with '='
// padding only at the end.
func Decode(s string) ([]byte, error) {
	if len(s) == 0 {
		return nil, nil
	}
	if len(s)%4 != 0 {
		return nil, ErrBadInput
	}

	pad := 0
	if s[len(s)-1] == '=' {
		pad++
		if s[len(s)-2] == '=' {
			pad++
		}
	}

	out := make([]byte, 0, len(s)/4*3-pad)
	for i := 0; i < len(s); i += 4 {
		var v uint32
		n := 4
		for j := 0; j < 4; j++ {
			ch := s[i+j]
			if ch == '=' {
				if i+4 < len(s) || j < 4-pad {
					return nil, ErrBadInput
				}
				n = j
				v <<= uint(6 * (4 - j))
				break
			}
			idx := decodeIndex(ch)
			if idx < 0 {
				return nil, ErrBadInput
			}
			v = v<<6 | uint32(idx)
		}
		switch n {
		case 4:
			out = append(out, byte(v>>16), byte(v>>8), byte(v))
		case 3:
			out = append(out, byte(v>>16), byte(v>>8))
		case 2:
			out = append(out, byte(v>>16))
		default:
			return nil, ErrBadInput
		}
	}
	return out, nil
}

func decodeIndex(ch byte) int {
	switch {
	case ch >= 'A' && ch <= 'Z':
		return int(ch - 'A')
	case ch >= 'a' && ch <= 'z':
		return int(ch-'a') + 26
	case ch >= '0' && ch <= '9':
		return int(ch-'0') + 52
	case ch == '+':
		return 62
	case ch == '/':
		return 63
	default:
		return -1
	}
}
