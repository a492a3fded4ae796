package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameScriptNeverContainsMarkers(t *testing.T) {
	f := newFrame()
	script := f.script("echo hi")

	assert.NotContains(t, script, f.start)
	assert.False(t, f.end.MatchString(script))
	assert.Contains(t, script, "{ echo hi\n}")
	assert.True(t, strings.HasSuffix(script, "\n"))
}

func TestFrameMatchEnd(t *testing.T) {
	f := newFrame()

	tests := []struct {
		line     string
		rest     string
		code     int
		expected bool
	}{
		{"__SHX_E_" + f.token + "_0__", "", 0, true},
		{"__SHX_E_" + f.token + "_127__", "", 127, true},
		{"partial__SHX_E_" + f.token + "_3__", "partial", 3, true},
		{"__SHX_E_" + newToken() + "_0__", "", 0, false},
		{"plain output", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			rest, code, ok := f.matchEnd(tt.line)
			assert.Equal(t, tt.expected, ok)
			if ok {
				assert.Equal(t, tt.rest, rest)
				assert.Equal(t, tt.code, code)
			}
		})
	}
}

func TestFrameTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok := newFrame().token
		assert.Len(t, tok, 32)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}

func TestStripMarkers(t *testing.T) {
	tok := newToken()

	line, ok := stripMarkers("__SHX_R_" + tok + "__")
	assert.False(t, ok)
	assert.Empty(t, line)

	line, ok = stripMarkers("^C__SHX_E_" + tok + "_130__")
	assert.True(t, ok)
	assert.Equal(t, "^C", line)

	line, ok = stripMarkers("ordinary")
	assert.True(t, ok)
	assert.Equal(t, "ordinary", line)
}

func TestMarkerScript(t *testing.T) {
	script, marker := markerScript("R", "abc")
	assert.Equal(t, "__SHX_R_abc__", marker)
	assert.NotContains(t, script, marker)
}

func TestDecodeEscapes(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{`ls\n`, "ls\n"},
		{`a\tb\r`, "a\tb\r"},
		{`back\\slash`, `back\slash`},
		{`\x03`, "\x03"},
		{`\x1b[A`, "\x1b[A"},
		{`\q`, `\q`},
		{`trailing\`, `trailing\`},
		{`\xZZrest`, "rest"},
		{`\x4`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, DecodeEscapes(tt.input))
		})
	}
}
