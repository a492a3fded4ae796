package output

import (
	"bytes"
	"sync"
)

// DefaultMaxLineBytes bounds a partial line before it is forced out.
const DefaultMaxLineBytes = 64 * 1024

// SplitOptions tune how raw bytes become lines.
type SplitOptions struct {
	StripANSI    bool
	MaxLineBytes int
}

// LineSplitter turns a byte stream into lines and hands each to emit.
// Write and Flush are meant for a single producer; Pending may be called
// from any goroutine.
type LineSplitter struct {
	mu      sync.Mutex
	opts    SplitOptions
	partial []byte
	emit    func(string)
}

// NewLineSplitter creates a splitter calling emit once per complete line.
func NewLineSplitter(opts SplitOptions, emit func(string)) *LineSplitter {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	return &LineSplitter{opts: opts, emit: emit}
}

// Write implements io.Writer. It never fails.
func (s *LineSplitter) Write(p []byte) (int, error) {
	n := len(p)

	s.mu.Lock()
	var lines []string
	limit := s.opts.MaxLineBytes
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		seg := p
		if i >= 0 {
			seg = p[:i]
		}
		s.partial = append(s.partial, seg...)
		for len(s.partial) > limit {
			lines = append(lines, s.clean(s.partial[:limit]))
			s.partial = append(s.partial[:0], s.partial[limit:]...)
		}
		if i < 0 {
			break
		}
		lines = append(lines, s.clean(s.partial))
		s.partial = s.partial[:0]
		p = p[i+1:]
	}
	s.mu.Unlock()

	// emit may block; never hold the lock across it.
	for _, line := range lines {
		s.emit(line)
	}
	return n, nil
}

// Flush emits any buffered partial line.
func (s *LineSplitter) Flush() {
	s.mu.Lock()
	if len(s.partial) == 0 {
		s.mu.Unlock()
		return
	}
	line := s.clean(s.partial)
	s.partial = s.partial[:0]
	s.mu.Unlock()

	s.emit(line)
}

// Pending returns the cleaned partial line without consuming it.
func (s *LineSplitter) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clean(s.partial)
}

func (s *LineSplitter) clean(raw []byte) string {
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	line := string(raw)
	if s.opts.StripANSI {
		line = StripANSI(line)
	}
	return collapseCR(line)
}
