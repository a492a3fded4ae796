package session

import (
	"strconv"
	"strings"
)

// DecodeEscapes turns the escapes \n \r \t \\ and \xNN in text typed by a
// caller into the bytes they name, so a caller can press Enter or send
// control characters. Unknown escapes are kept as written and a malformed
// \x escape is dropped.
func DecodeEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			b.WriteByte('\\')
			break
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '\\':
			b.WriteByte('\\')
		case 'x':
			end := i + 3
			if end > len(s) {
				end = len(s)
			}
			hex := s[i+1 : end]
			if v, err := strconv.ParseUint(hex, 16, 8); err == nil && len(hex) == 2 {
				b.WriteByte(byte(v))
			}
			i = end - 1
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
