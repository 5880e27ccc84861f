// Package dicom provides the series browser used by the wizard when a load
// path turns out to be a DICOM directory. Actual series discovery and
// materialization stay behind the Enumerator and Materializer contracts.
package dicom

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"imaged/internal/imageio"
)

// SeriesDescriptor is an opaque metadata record for one candidate series,
// in the order the enumeration service reported it.
type SeriesDescriptor struct {
	// Ordinal within the enumeration that produced this descriptor.
	Index int `json:"index"`
	// UID identifying the series, when the service provides one.
	UID string `json:"uid,omitempty"`
	// Description shown to the user (series description, dimensions, ...).
	Description string `json:"description"`
	// Files holding the series' constituent instances.
	Files []string `json:"files,omitempty"`
	// Extra carries any further service-specific metadata.
	Extra map[string]string `json:"extra,omitempty"`
}

// Enumerator is the external DICOM enumeration service.
type Enumerator interface {
	// Enumerate lists candidate series under dir. An empty result is valid.
	Enumerate(ctx context.Context, dir string) ([]SeriesDescriptor, error)
}

// Materializer turns a selected series into an image, typically by handing
// the constituent files to the guided I/O backend.
type Materializer interface {
	MaterializeSeries(ctx context.Context, desc SeriesDescriptor) (*imageio.Image, error)
}

const noSelection = -1

// Browser holds the result of the last directory enumeration and the user's
// series selection. It is owned by a single wizard session and is not safe
// for concurrent callers; the mutex only protects reads from the HTTP layer
// racing a rescan.
type Browser struct {
	enum Enumerator
	log  zerolog.Logger

	mu       sync.Mutex
	dir      string
	contents []SeriesDescriptor
	selected int
}

func NewBrowser(enum Enumerator, log zerolog.Logger) *Browser {
	return &Browser{enum: enum, log: log, selected: noSelection}
}

// ProcessDirectory enumerates candidate series under dir, replacing any
// previously stored list and clearing the selection. Zero series is a valid
// empty result; only an unreadable path fails.
func (b *Browser) ProcessDirectory(ctx context.Context, dir string) error {
	series, err := b.enum.Enumerate(ctx, dir)
	if err != nil {
		return ErrDirectoryRead(dir, err)
	}
	for i := range series {
		series[i].Index = i
	}
	b.mu.Lock()
	b.dir = dir
	b.contents = series
	b.selected = noSelection
	b.mu.Unlock()
	b.log.Debug().Str("dir", dir).Int("series", len(series)).Msg("dicom directory processed")
	return nil
}

// Contents returns a copy of the current series list.
func (b *Browser) Contents() []SeriesDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SeriesDescriptor, len(b.contents))
	copy(out, b.contents)
	return out
}

// SeriesCount returns the number of enumerated series.
func (b *Browser) SeriesCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.contents)
}

// Descriptor returns the series at index without changing the selection.
func (b *Browser) Descriptor(index int) (SeriesDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.contents) {
		return SeriesDescriptor{}, ErrIndexOutOfRange(index, len(b.contents))
	}
	return b.contents[index], nil
}

// Select marks the series at index as the current selection.
func (b *Browser) Select(index int) (SeriesDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.contents) {
		return SeriesDescriptor{}, ErrIndexOutOfRange(index, len(b.contents))
	}
	b.selected = index
	return b.contents[index], nil
}

// Selected returns the currently selected descriptor, if any. The selection
// is unset until Select succeeds and after every rescan or Reset.
func (b *Browser) Selected() (SeriesDescriptor, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selected == noSelection {
		return SeriesDescriptor{}, false
	}
	return b.contents[b.selected], true
}

// Directory returns the directory of the last enumeration.
func (b *Browser) Directory() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dir
}

// Covers reports whether path is the browsed directory or lies under it.
// It is false when no directory has been browsed.
func (b *Browser) Covers(path string) bool {
	b.mu.Lock()
	dir := b.dir
	b.mu.Unlock()
	if dir == "" {
		return false
	}
	dir = filepath.Clean(dir)
	path = filepath.Clean(path)
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

// Reset drops the stored series list and selection.
func (b *Browser) Reset() {
	b.mu.Lock()
	b.dir = ""
	b.contents = nil
	b.selected = noSelection
	b.mu.Unlock()
}
