package imageio

import (
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// HintStore remembers which format a given path was loaded or saved as, so a
// subsequent detection pass can skip sniffing. Hints are keyed by cleaned
// absolute-ish path and expire after a TTL (0 means never).
type HintStore struct {
	c *gocache.Cache
}

// NewHintStore builds a hint store with the given TTL. A non-positive TTL
// keeps hints for the process lifetime.
func NewHintStore(ttl time.Duration) *HintStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &HintStore{c: gocache.New(ttl, 10*time.Minute)}
}

func hintKey(path string) string { return filepath.Clean(path) }

// Get returns the hinted format id for path, if one is present.
func (h *HintStore) Get(path string) (string, bool) {
	v, ok := h.c.Get(hintKey(path))
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// Set records the format id used for path.
func (h *HintStore) Set(path, formatID string) {
	h.c.SetDefault(hintKey(path), formatID)
}

// Delete removes a hint; used when a load with a hinted format fails.
func (h *HintStore) Delete(path string) {
	h.c.Delete(hintKey(path))
}
