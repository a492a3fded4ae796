// Package id generates sortable, prefixed identifiers for jobs and requests.
//
// IDs are ULIDs with a type prefix (job_*, run_*, req_*). The ULID part is
// time-ordered, so listing jobs by ID lists them by start time.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Typed IDs
// ============================================================================

// JobID identifies a background or blocking command run.
type JobID string

// RequestID identifies an HTTP request.
type RequestID string

const (
	JobPrefix     = "job"
	RunPrefix     = "run"
	RequestPrefix = "req"
)

func (id JobID) String() string     { return string(id) }
func (id RequestID) String() string { return string(id) }

// ============================================================================
// Generator
// ============================================================================

// Generator produces ULIDs from a monotonic entropy source.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand. IDs generated in
// the same millisecond still sort in generation order.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// WithPrefix creates a prefix_ULID string.
func (g *Generator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewJobID returns an ID for a detached job.
func NewJobID() JobID { return JobID(Default().WithPrefix(JobPrefix)) }

// NewRunID returns an ID for a blocking run.
func NewRunID() JobID { return JobID(Default().WithPrefix(RunPrefix)) }

// NewRequestID returns an ID for an incoming request.
func NewRequestID() RequestID { return RequestID(Default().WithPrefix(RequestPrefix)) }

// ============================================================================
// Parsing
// ============================================================================

// Split separates a prefixed ID into prefix and ULID.
func Split(s string) (prefix string, u ulid.ULID, err error) {
	prefix, raw, ok := strings.Cut(s, "_")
	if !ok {
		return "", ulid.ULID{}, fmt.Errorf("id %q has no prefix", s)
	}
	u, err = ulid.Parse(raw)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("id %q: %w", s, err)
	}
	return prefix, u, nil
}

// Timestamp extracts the creation time of a prefixed ID.
func Timestamp(s string) (time.Time, error) {
	_, u, err := Split(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
