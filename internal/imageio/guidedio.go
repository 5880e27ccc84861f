package imageio

import (
	"context"
	"fmt"
)

// GuidedIO is the external service that performs format-specific decode and
// encode. Implementations live outside this core; tests use the in-memory
// fake in fake.go and the daemon wires a metadata-only backend.
type GuidedIO interface {
	// CanRead reports whether the backend can decode the given format.
	CanRead(f Format) bool
	// Decode materializes an image from path using the given format.
	Decode(ctx context.Context, path string, f Format) (*Image, error)
	// Encode writes the image to path in the given format.
	Encode(ctx context.Context, img *Image, path string, f Format) error
	// SniffFormat inspects the file header and returns the detected
	// format, or ok=false when the header matches nothing it knows.
	SniffFormat(path string) (Format, bool)
}

// Warning is a non-fatal diagnostic accumulated during a load or save. A
// backend may report unusual-but-usable input (e.g. anisotropic spacing)
// without failing the operation.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w Warning) String() string { return fmt.Sprintf("%s: %s", w.Code, w.Message) }

// WarningSink receives non-fatal diagnostics. Backends call it at most a few
// times per operation.
type WarningSink func(Warning)

// WarningReporter is implemented by backends that can surface non-fatal
// diagnostics during Decode/Encode.
type WarningReporter interface {
	SetWarningSink(WarningSink)
}
