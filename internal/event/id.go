package event

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"
)

// HashSource joins parts with "|" and returns the hex SHA1 digest of the result.
func HashSource(parts ...string) string {
	h := sha1.New()
	h.Write([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// SourceKey builds the semantic key of a lesson occurrence:
// date|startTime|endTime|title|location.
func SourceKey(date time.Time, startTime, endTime, title, location string) string {
	return strings.Join([]string{
		date.Format("2006-01-02"),
		startTime,
		endTime,
		strings.TrimSpace(title),
		strings.TrimSpace(location),
	}, "|")
}

// IDAllocator hands out source IDs for one extraction run. The first occurrence of a
// key hashes the bare key; the n-th repeat hashes key + "|#<n-1>".
type IDAllocator struct {
	seen map[string]int
}

// NewIDAllocator creates an allocator with no keys seen.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{seen: make(map[string]int)}
}

// Next returns the source ID for the next occurrence of key.
func (a *IDAllocator) Next(key string) string {
	a.seen[key]++
	n := a.seen[key] - 1
	if n == 0 {
		return HashSource(key)
	}
	return HashSource(fmt.Sprintf("%s|#%d", key, n))
}
