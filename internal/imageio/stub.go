package imageio

import (
	"bytes"
	"context"
	"fmt"
	"os"
)

// StubIO is the metadata-only backend wired by the daemon when no real codec
// backend is linked in. Magic sniffing is real (it reads file headers against
// the catalog); Decode produces a metadata-only image handle and Encode
// writes whatever payload bytes the image carries.
type StubIO struct {
	catalog *Catalog
	sink    WarningSink
}

func NewStubIO(catalog *Catalog) *StubIO { return &StubIO{catalog: catalog} }

func (s *StubIO) SetWarningSink(sink WarningSink) { s.sink = sink }

func (s *StubIO) CanRead(f Format) bool { return f.CanRead }

func (s *StubIO) SniffFormat(path string) (Format, bool) {
	f, err := os.Open(path)
	if err != nil {
		return Format{}, false
	}
	defer f.Close()

	header := make([]byte, 512)
	n, _ := f.Read(header)
	header = header[:n]

	for _, fmtv := range s.catalog.Formats() {
		if len(fmtv.Magic) == 0 {
			continue
		}
		end := fmtv.MagicOffset + len(fmtv.Magic)
		if end > len(header) {
			continue
		}
		if bytes.Equal(header[fmtv.MagicOffset:end], fmtv.Magic) {
			return fmtv, true
		}
	}
	return Format{}, false
}

func (s *StubIO) Decode(ctx context.Context, path string, f Format) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if s.sink != nil {
		s.sink(Warning{Code: "stub_backend", Message: "metadata-only backend: pixel data not decoded"})
	}
	meta := Metadata{
		FileName:      path,
		FileSizeBytes: st.Size(),
		ComponentType: "unknown",
		Components:    1,
		Spacing:       [3]float64{1, 1, 1},
		Orientation:   "RAS",
	}
	return NewImage(meta, nil), nil
}

func (s *StubIO) Encode(ctx context.Context, img *Image, path string, f Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !f.CanWrite {
		return fmt.Errorf("format %s is read-only", f.ID)
	}
	var payload []byte
	if b, ok := img.Payload().([]byte); ok {
		payload = b
	}
	return os.WriteFile(path, payload, 0o644)
}
