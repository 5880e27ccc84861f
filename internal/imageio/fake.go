package imageio

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
)

// FakeIO is an in-memory GuidedIO for tests, mirroring the role of a real
// codec backend: fixtures are registered per path and decode/encode outcomes
// are scripted.
type FakeIO struct {
	mu sync.Mutex
	// fixtures maps cleaned path to the image returned by Decode.
	fixtures map[string]*Image
	// sniffs maps cleaned path to a format returned by SniffFormat.
	sniffs map[string]Format
	// decodeErr, when set, fails every Decode with this message.
	decodeErr string
	// encodeErr, when set, fails every Encode with this message.
	encodeErr string
	// warnings raised on every successful Decode.
	warnings []Warning
	sink     WarningSink

	Encoded   []string // paths passed to Encode, in order
	Unreadable []string // format ids reported unreadable by CanRead
}

func NewFakeIO() *FakeIO {
	return &FakeIO{fixtures: make(map[string]*Image), sniffs: make(map[string]Format)}
}

// AddFixture registers the image Decode returns for path.
func (f *FakeIO) AddFixture(path string, img *Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixtures[filepath.Clean(path)] = img
}

// AddSniff registers the format SniffFormat reports for path.
func (f *FakeIO) AddSniff(path string, fmtv Format) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sniffs[filepath.Clean(path)] = fmtv
}

// FailDecode makes every Decode fail with msg; empty restores success.
func (f *FakeIO) FailDecode(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decodeErr = msg
}

// FailEncode makes every Encode fail with msg; empty restores success.
func (f *FakeIO) FailEncode(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.encodeErr = msg
}

// WarnOnDecode raises w on every subsequent successful Decode.
func (f *FakeIO) WarnOnDecode(w Warning) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, w)
}

func (f *FakeIO) SetWarningSink(sink WarningSink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
}

func (f *FakeIO) CanRead(fmtv Format) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.Unreadable {
		if id == fmtv.ID {
			return false
		}
	}
	return true
}

func (f *FakeIO) Decode(ctx context.Context, path string, fmtv Format) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decodeErr != "" {
		return nil, errors.New(f.decodeErr)
	}
	img, ok := f.fixtures[filepath.Clean(path)]
	if !ok {
		return nil, errors.New("no fixture for " + path)
	}
	for _, w := range f.warnings {
		if f.sink != nil {
			f.sink(w)
		}
	}
	return img, nil
}

func (f *FakeIO) Encode(ctx context.Context, img *Image, path string, fmtv Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.encodeErr != "" {
		return errors.New(f.encodeErr)
	}
	f.Encoded = append(f.Encoded, filepath.Clean(path))
	return nil
}

func (f *FakeIO) SniffFormat(path string) (Format, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmtv, ok := f.sniffs[filepath.Clean(path)]
	return fmtv, ok
}
