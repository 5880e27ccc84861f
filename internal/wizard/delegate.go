package wizard

import (
	"fmt"
	"os"
	"path/filepath"

	"imaged/internal/imageio"
)

// LoadDelegate customizes load-mode behavior. Delegates never mutate wizard
// state directly; they return results the model applies.
type LoadDelegate interface {
	// CanHandleFormat reports whether this load target accepts the format.
	CanHandleFormat(f imageio.Format) bool
	// ValidateImage is the post-load check; a non-nil error fails the load
	// and the image is discarded. reference is nil unless one was set.
	ValidateImage(img, reference *imageio.Image) error
	// HistoryName keys the filename-history list for this load target.
	HistoryName() string
	// UpdateHistory records file in this target's history on finalize.
	UpdateHistory(file string)
	// DisplayName is shown to the user in dialog titles.
	DisplayName() string
	// IsOverlay reports whether the loaded layer is an overlay that sits
	// on top of a reference image.
	IsOverlay() bool
	// SupportsRegistration reports whether the loaded layer may be
	// aligned to the reference image.
	SupportsRegistration() bool
}

// SaveDelegate customizes save-mode behavior.
type SaveDelegate interface {
	// DefaultFormatID is the fallback format when detection finds nothing.
	DefaultFormatID() string
	// ValidateDestination checks that path is writable in the format.
	ValidateDestination(path string, f imageio.Format) error
	// PostSave performs bookkeeping after a successful write.
	PostSave(path string, f imageio.Format)
	HistoryName() string
	// UpdateHistory records file in this target's history on finalize.
	UpdateHistory(file string)
	DisplayName() string
}

// LoadMainDelegate loads the session's main image: any readable format, no
// geometry constraint.
type LoadMainDelegate struct {
	// Recent, when non-nil, receives the finalized filename for history
	// bookkeeping.
	Recent func(file string)
}

func (LoadMainDelegate) CanHandleFormat(f imageio.Format) bool { return f.CanRead }

func (LoadMainDelegate) ValidateImage(img, _ *imageio.Image) error {
	for i, d := range img.Meta.Dims {
		if d < 0 {
			return fmt.Errorf("negative dimension %d on axis %d", d, i)
		}
	}
	return nil
}

func (LoadMainDelegate) HistoryName() string { return "MainImage" }

func (d LoadMainDelegate) UpdateHistory(file string) {
	if d.Recent != nil {
		d.Recent(file)
	}
}

func (LoadMainDelegate) DisplayName() string        { return "Main Image" }
func (LoadMainDelegate) IsOverlay() bool            { return false }
func (LoadMainDelegate) SupportsRegistration() bool { return false }

// LoadOverlayDelegate loads an overlay layer whose voxel grid must match the
// reference image, unless registration is allowed to reconcile them.
type LoadOverlayDelegate struct {
	// AllowGeometryMismatch skips the grid check; the caller is expected
	// to run registration afterwards.
	AllowGeometryMismatch bool
	// Sticky and ColorMap are the display defaults applied by the model.
	Sticky   bool
	ColorMap string
	// Recent, when non-nil, receives the finalized filename for history
	// bookkeeping.
	Recent func(file string)
}

func (LoadOverlayDelegate) CanHandleFormat(f imageio.Format) bool { return f.CanRead }

func (d LoadOverlayDelegate) ValidateImage(img, reference *imageio.Image) error {
	if reference == nil {
		return fmt.Errorf("overlay requires a loaded reference image")
	}
	if d.AllowGeometryMismatch {
		return nil
	}
	if !img.Meta.SameGeometry(reference.Meta) {
		return fmt.Errorf("overlay geometry %v does not match reference %v",
			img.Meta.Dims, reference.Meta.Dims)
	}
	return nil
}

func (LoadOverlayDelegate) HistoryName() string { return "OverlayImage" }

func (d LoadOverlayDelegate) UpdateHistory(file string) {
	if d.Recent != nil {
		d.Recent(file)
	}
}

func (LoadOverlayDelegate) DisplayName() string        { return "Overlay Image" }
func (LoadOverlayDelegate) IsOverlay() bool            { return true }
func (LoadOverlayDelegate) SupportsRegistration() bool { return true }

// DefaultSaveDelegate saves in NiFTI by default and checks that the
// destination directory is writable.
type DefaultSaveDelegate struct {
	DefaultFormat string
	History       string
	Display       string

	// Saved records post-save bookkeeping calls; useful to callers that
	// persist history externally.
	Saved []string
	// Recent collects the filenames recorded on finalize.
	Recent []string
}

func (d *DefaultSaveDelegate) DefaultFormatID() string {
	if d.DefaultFormat == "" {
		return "nifti"
	}
	return d.DefaultFormat
}

func (d *DefaultSaveDelegate) ValidateDestination(path string, f imageio.Format) error {
	if !f.CanWrite {
		return fmt.Errorf("format %s does not support writing", f.Name)
	}
	dir := filepath.Dir(path)
	st, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("destination directory: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("destination %s is not a directory", dir)
	}
	return nil
}

func (d *DefaultSaveDelegate) PostSave(path string, f imageio.Format) {
	d.Saved = append(d.Saved, path)
}

func (d *DefaultSaveDelegate) UpdateHistory(file string) {
	d.Recent = append(d.Recent, file)
}

func (d *DefaultSaveDelegate) HistoryName() string {
	if d.History == "" {
		return "SavedImage"
	}
	return d.History
}

func (d *DefaultSaveDelegate) DisplayName() string {
	if d.Display == "" {
		return "Image"
	}
	return d.Display
}
