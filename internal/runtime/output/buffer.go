package output

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/GriffinCanCode/agentsh/internal/runtime/governor"
	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
	"github.com/GriffinCanCode/agentsh/internal/shared/types"
)

const (
	// HeadLines is the size of the frozen head.
	HeadLines = 10
	// DefaultErrorCap bounds the error-line index.
	DefaultErrorCap = 200
)

// errorPattern flags lines that look like build or runtime failures.
var errorPattern = regexp.MustCompile(`(?i)\b(error|failed|failure|fatal|panic|exception|traceback|fail|denied|aborted)\b`)

// MatchesError reports whether line belongs in the error index.
func MatchesError(line string) bool {
	return errorPattern.MatchString(line)
}

// Options configure a Buffer. Zero values select the defaults.
type Options struct {
	HardCap      int
	ErrorCap     int
	StripANSI    bool
	MaxLineBytes int
}

// Buffer is an append-only line log with a frozen head, a retained window
// bounded by a hard cap, and an index of error-looking lines. It is safe for
// concurrent use and implements io.Writer.
type Buffer struct {
	mu       sync.RWMutex
	hardCap  int
	errorCap int

	head      []string
	body      []string // absolute lines [bodyStart, total)
	bodyStart int
	total     int
	errors    []string

	splitter *LineSplitter
}

// NewBuffer creates an empty buffer.
func NewBuffer(opts Options) *Buffer {
	if opts.HardCap <= 0 || opts.HardCap > governor.OutputHardCap {
		opts.HardCap = governor.OutputHardCap
	}
	if opts.HardCap < HeadLines {
		opts.HardCap = HeadLines
	}
	if opts.ErrorCap <= 0 {
		opts.ErrorCap = DefaultErrorCap
	}

	b := &Buffer{
		hardCap:   opts.HardCap,
		errorCap:  opts.ErrorCap,
		bodyStart: HeadLines,
	}
	b.splitter = NewLineSplitter(SplitOptions{
		StripANSI:    opts.StripANSI,
		MaxLineBytes: opts.MaxLineBytes,
	}, b.AppendLine)
	return b
}

// Write splits p into lines and appends them.
func (b *Buffer) Write(p []byte) (int, error) {
	return b.splitter.Write(p)
}

// Flush appends any trailing partial line.
func (b *Buffer) Flush() {
	b.splitter.Flush()
}

// AppendLine appends one already-split line.
func (b *Buffer) AppendLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.total < HeadLines {
		b.head = append(b.head, line)
	} else {
		b.body = append(b.body, line)
	}
	b.total++

	if len(b.errors) < b.errorCap && MatchesError(line) {
		b.errors = append(b.errors, line)
	}

	for len(b.head)+len(b.body) > b.hardCap {
		b.body[0] = ""
		b.body = b.body[1:]
		b.bodyStart++
	}
}

// Total returns the number of lines ever appended.
func (b *Buffer) Total() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

// Retained returns the number of lines still available.
func (b *Buffer) Retained() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.head) + len(b.body)
}

// Evicted returns the half-open range of line numbers no longer retained.
// The range is empty when nothing was evicted.
func (b *Buffer) Evicted() (from, to int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.total <= HeadLines {
		return HeadLines, HeadLines
	}
	return HeadLines, b.bodyStart
}

// Snapshot is a windowed view of a buffer.
type Snapshot struct {
	Head       []string
	Tail       []string
	ErrorLines []string
	TotalLines int
	Retained   int
	// Truncated is set once lines have been permanently evicted.
	Truncated bool
	// Windowed is set when retained lines exist outside Head and Tail.
	Windowed bool
}

// Fill copies the windowed output into r.
func (s Snapshot) Fill(r *types.ExecutionResult) {
	r.OutputHead = s.Head
	r.OutputTail = s.Tail
	r.OutputErrorLines = s.ErrorLines
	r.TotalLines = s.TotalLines
	r.Truncated = s.Truncated
	r.Windowed = s.Windowed
}

// Snapshot returns the last tailLines retained lines plus whatever part of
// the frozen head precedes them. Head and Tail never overlap.
func (b *Buffer) Snapshot(tailLines int) Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if tailLines < 0 {
		tailLines = 0
	}
	retained := len(b.head) + len(b.body)

	var tail []string
	tailFrom := b.total // absolute index of first tail line
	if n := min(tailLines, len(b.body)); n > 0 {
		tail = append(tail, b.body[len(b.body)-n:]...)
		tailFrom = b.total - n
	}
	if rest := tailLines - len(tail); rest > 0 && len(b.body) == len(tail) && b.bodyStart == HeadLines {
		// The tail reaches back into the head only when no line between
		// them was evicted.
		n := min(rest, len(b.head))
		tail = append(append([]string(nil), b.head[len(b.head)-n:]...), tail...)
		tailFrom = len(b.head) - n
	}

	var head []string
	if tailFrom > 0 {
		head = append(head, b.head[:min(tailFrom, len(b.head))]...)
	}

	return Snapshot{
		Head:       orEmpty(head),
		Tail:       orEmpty(tail),
		ErrorLines: orEmpty(append([]string(nil), b.errors...)),
		TotalLines: b.total,
		Retained:   retained,
		Truncated:  retained < b.total,
		Windowed:   len(head)+len(tail) < retained,
	}
}

// Range returns lines [start, end). It fails with ErrInvalidRange for bounds
// outside [0, Total] and with ErrUnavailable when any requested line was
// evicted.
func (b *Buffer) Range(start, end int) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if start < 0 || end < start || end > b.total {
		return nil, fmt.Errorf("lines [%d, %d) of %d: %w", start, end, b.total, errs.ErrInvalidRange)
	}

	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		switch {
		case i < len(b.head):
			out = append(out, b.head[i])
		case i >= b.bodyStart:
			out = append(out, b.body[i-b.bodyStart])
		default:
			return nil, fmt.Errorf("line %d evicted, lines [%d, %d) are gone: %w",
				i, HeadLines, b.bodyStart, errs.ErrUnavailable)
		}
	}
	return out, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
