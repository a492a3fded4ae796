package session

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// markerPrefix starts every sentinel the server injects.
const markerPrefix = "__SHX_"

// Setup is written once after the shell starts. Echo is disabled so the
// framed script never shows up in output, and job control is off so every
// command stays in the session's process group.
const setupScript = "stty -echo\n" +
	"set +m\n" +
	"export PS1='' PS2='' PROMPT_COMMAND='' PAGER=cat GIT_PAGER=cat\n" +
	"shopt -s expand_aliases\n"

// anyMarker matches a sentinel for any token.
var anyMarker = regexp.MustCompile(`__SHX_[SERD]_[0-9a-f]{32}(?:_-?\d+)?__`)

// frame holds the sentinels for one command.
type frame struct {
	token string
	start string
	end   *regexp.Regexp
}

func newFrame() frame {
	tok := newToken()
	return frame{
		token: tok,
		start: markerPrefix + "S_" + tok + "__",
		end:   regexp.MustCompile(`__SHX_E_` + tok + `_(-?\d+)__`),
	}
}

// newToken returns 128 random bits as hex.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// script wraps command so the shell prints the start sentinel, runs the
// command in the current shell, then prints the end sentinel with $?.
// Sentinels are printed from split literals so the text written to the
// terminal never contains a complete marker. The end sentinel shares the
// closing line of the group so the command cannot read it from stdin.
func (f frame) script(command string) string {
	return fmt.Sprintf(
		"printf '%%s%%s\\n' '%sS_' '%s__'; { %s\n} 2>&1; __shx_ec=$?; printf '%%s%%s_%%d__\\n' '%sE_' '%s' \"$__shx_ec\"\n",
		markerPrefix, f.token, command, markerPrefix, f.token,
	)
}

// isStart reports whether line carries this frame's start sentinel.
func (f frame) isStart(line string) bool {
	return strings.Contains(line, f.start)
}

// matchEnd finds the end sentinel. rest is the text printed before it on the
// same line, which belongs to the command's output.
func (f frame) matchEnd(line string) (rest string, code int, ok bool) {
	loc := f.end.FindStringSubmatchIndex(line)
	if loc == nil {
		return "", 0, false
	}
	code, err := strconv.Atoi(line[loc[2]:loc[3]])
	if err != nil {
		code = -1
	}
	return line[:loc[0]], code, true
}

// markerScript prints a standalone sentinel of the given kind.
func markerScript(kind, token string) (script, marker string) {
	marker = markerPrefix + kind + "_" + token + "__"
	script = fmt.Sprintf("printf '%%s%%s\\n' '%s%s_' '%s__'\n", markerPrefix, kind, token)
	return script, marker
}

// stripMarkers removes sentinels from a line. ok is false when nothing but
// sentinels and whitespace remain.
func stripMarkers(line string) (string, bool) {
	if !strings.Contains(line, markerPrefix) {
		return line, true
	}
	line = anyMarker.ReplaceAllString(line, "")
	return line, strings.TrimSpace(line) != ""
}
