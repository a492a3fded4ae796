package id

import (
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestPrefixedIDs(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
	}{
		{"job", NewJobID().String(), JobPrefix},
		{"run", NewRunID().String(), RunPrefix},
		{"request", NewRequestID().String(), RequestPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.id, tt.prefix+"_") {
				t.Errorf("ID should start with %q, got %s", tt.prefix+"_", tt.id)
			}
			prefix, _, err := Split(tt.id)
			if err != nil {
				t.Fatalf("Split failed: %v", err)
			}
			if prefix != tt.prefix {
				t.Errorf("prefix = %q, want %q", prefix, tt.prefix)
			}
		})
	}
}

func TestIDsSortByCreation(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = gen.WithPrefix(JobPrefix)
	}

	if !sort.StringsAreSorted(ids) {
		t.Error("IDs from one generator should sort in generation order")
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.WithPrefix(RunPrefix)
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate ID: %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 1000 {
		t.Errorf("expected 1000 IDs, got %d", len(seen))
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewJobID().String())
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("timestamp %v out of range", ts)
	}

	if _, err := Timestamp("nounderscore"); err == nil {
		t.Error("expected error for unprefixed id")
	}
	if _, err := Timestamp("job_notaulid"); err == nil {
		t.Error("expected error for malformed ulid")
	}
}
