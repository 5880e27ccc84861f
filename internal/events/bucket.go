// Package events implements the deduplicating event bucket used to coalesce
// high-frequency notifications from background workers. Producers may raise
// the same logical event many times per second; a consumer only needs to know
// that at least one occurrence is pending until it clears the bucket.
package events

import (
	"fmt"
	"strings"
	"sync"
)

// entry is one stored (kind, source) occurrence. The kind is copied on
// insertion, so the bucket never aliases caller state.
type entry struct {
	kind   Kind
	source any
}

// Bucket is a deduplicating set of (kind, source) pairs. At most one entry is
// stored per distinct pair. A single producer goroutine may insert while a
// consumer goroutine checks and clears; the mutex also makes multiple
// producers safe.
type Bucket struct {
	mu      sync.Mutex
	entries []entry
}

func NewBucket() *Bucket { return &Bucket{} }

// Put inserts (kind, source) unless an equivalent or more general entry is
// already present. A nil source means "any source".
func (b *Bucket) Put(kind Kind, source any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hasLocked(kind, source) {
		return
	}
	b.entries = append(b.entries, entry{kind: kind, source: source})
}

// Has reports whether a stored entry matches the queried kind and source.
// A stored kind matches when it is equal to or a specialization of the query;
// a nil queried source matches any stored source. Buckets stay small, so a
// linear scan is fine.
func (b *Bucket) Has(kind Kind, source any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hasLocked(kind, source)
}

func (b *Bucket) hasLocked(kind Kind, source any) bool {
	for _, e := range b.entries {
		if kind.Matches(e.kind) && (source == nil || source == e.source) {
			return true
		}
	}
	return false
}

// Clear drops all stored entries.
func (b *Bucket) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

// IsEmpty reports whether the bucket holds no entries.
func (b *Bucket) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries) == 0
}

// String renders the bucket contents for diagnostics.
func (b *Bucket) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sb strings.Builder
	sb.WriteString("Bucket[")
	for i, e := range b.entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s(%v)", e.kind, e.source)
	}
	sb.WriteString("]")
	return sb.String()
}
