package dicom

import (
	"context"
	"errors"
	"sync"

	"imaged/internal/imageio"
)

// FakeEnumerator is an in-memory Enumerator and Materializer for tests.
type FakeEnumerator struct {
	mu sync.Mutex
	// Series maps directory path to the descriptors Enumerate returns.
	Series map[string][]SeriesDescriptor
	// Images maps series UID to the image MaterializeSeries returns.
	Images map[string]*imageio.Image
	// Err, when set, fails Enumerate.
	Err error
}

func NewFakeEnumerator() *FakeEnumerator {
	return &FakeEnumerator{
		Series: make(map[string][]SeriesDescriptor),
		Images: make(map[string]*imageio.Image),
	}
}

func (f *FakeEnumerator) Enumerate(ctx context.Context, dir string) ([]SeriesDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]SeriesDescriptor, len(f.Series[dir]))
	copy(out, f.Series[dir])
	return out, nil
}

func (f *FakeEnumerator) MaterializeSeries(ctx context.Context, desc SeriesDescriptor) (*imageio.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.Images[desc.UID]
	if !ok {
		return nil, errors.New("no image for series " + desc.UID)
	}
	return img, nil
}
