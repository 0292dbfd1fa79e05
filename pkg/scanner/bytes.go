// Package scanner provides allocation-free byte scanning over raw HTTP
// handshake requests and responses.
package scanner

// ScanHeaderField finds a `Name: value` header line in raw CRLF-separated
// headers and returns the value with surrounding blanks and the trailing
// CR trimmed. The name match is case-sensitive.
func ScanHeaderField(raw []byte, name []byte) ([]byte, bool) {
	for start := 0; start < len(raw); {
		end := lineEnd(raw, start)
		line := raw[start:end]
		if v, ok := matchHeaderLine(line, name); ok {
			return v, true
		}
		start = end + 1
	}
	return nil, false
}

// HasHeaderLine reports whether a header line `Name: token` exists, anchored
// to the start of a line rather than matched as a substring.
func HasHeaderLine(raw []byte, name []byte, token []byte) bool {
	v, ok := ScanHeaderField(raw, name)
	if !ok {
		return false
	}
	if len(v) != len(token) {
		return false
	}
	for i := range token {
		if v[i] != token[i] {
			return false
		}
	}
	return true
}

func matchHeaderLine(line []byte, name []byte) ([]byte, bool) {
	if len(line) < len(name)+1 {
		return nil, false
	}
	for i := range name {
		if line[i] != name[i] {
			return nil, false
		}
	}
	if line[len(name)] != ':' {
		return nil, false
	}
	return trim(line[len(name)+1:]), true
}

func lineEnd(raw []byte, start int) int {
	for i := start; i < len(raw); i++ {
		if raw[i] == '\n' {
			return i
		}
	}
	return len(raw)
}

func trim(v []byte) []byte {
	i, j := 0, len(v)
	for i < j && IsSpace(v[i]) {
		i++
	}
	for j > i && IsSpace(v[j-1]) {
		j--
	}
	return v[i:j]
}

// IndexOf returns the first index of key in payload, or -1.
func IndexOf(payload []byte, key []byte) int {
	if len(key) == 0 || len(payload) < len(key) {
		return -1
	}
outer:
	for i := 0; i <= len(payload)-len(key); i++ {
		for j := 0; j < len(key); j++ {
			if payload[i+j] != key[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

// IsSpace reports whether b is an ASCII blank.
func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// BytesContains reports whether needle occurs anywhere in haystack.
func BytesContains(haystack []byte, needle []byte) bool {
	return len(needle) == 0 || IndexOf(haystack, needle) >= 0
}
