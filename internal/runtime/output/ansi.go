package output

import (
	"regexp"
	"strings"
)

// ansiSequence matches CSI sequences (including DEC private and kitty keyboard
// modes), OSC sequences terminated by BEL, charset selection, single-character
// escapes and backspace overstrike.
var ansiSequence = regexp.MustCompile(`\x1b\[[0-9;?<=>!]*[a-zA-Z~]|\x1b\][^\x07]*\x07|\x1b[()][0-9A-B]|\x1b[a-zA-Z]|.\x08`)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	if !strings.ContainsAny(s, "\x1b\x08") {
		return s
	}
	return ansiSequence.ReplaceAllString(s, "")
}

// collapseCR keeps only the text a terminal would show after carriage-return
// overwrites. A trailing CR must already be removed.
func collapseCR(s string) string {
	if i := strings.LastIndexByte(s, '\r'); i >= 0 {
		return s[i+1:]
	}
	return s
}
