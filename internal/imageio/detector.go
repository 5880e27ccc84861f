package imageio

import (
	"imaged/internal/common/fsutil"
)

// ConfidenceSource records which detection layer produced a candidate.
type ConfidenceSource string

const (
	ConfidenceHint      ConfidenceSource = "hint"
	ConfidenceMagic     ConfidenceSource = "magic_number"
	ConfidenceExtension ConfidenceSource = "extension"
	ConfidenceDefault   ConfidenceSource = "save_default"
	ConfidenceNone      ConfidenceSource = "none"
)

// Candidate is the transient result of one detection pass.
type Candidate struct {
	Format     Format
	OK         bool
	Source     ConfidenceSource
	FileExists bool
}

// Detector guesses the file format for a path. Detection layers, first match
// wins: prior hint, magic-number sniff (load mode, existing files only),
// filename extension, and in save mode the delegate's default format.
type Detector struct {
	catalog *Catalog
	hints   *HintStore
	io      GuidedIO

	// Default format id applied in save mode when nothing else matches.
	// Set from the active save delegate; empty means no fallback.
	saveDefault string
}

func NewDetector(catalog *Catalog, hints *HintStore, io GuidedIO) *Detector {
	return &Detector{catalog: catalog, hints: hints, io: io}
}

// SetSaveDefault installs the save-mode fallback format id.
func (d *Detector) SetSaveDefault(formatID string) { d.saveDefault = formatID }

// Guess runs the detection layers for path in the given mode. It never fails:
// a non-existent path in load mode is useful information, reported through
// Candidate.FileExists with OK=false.
func (d *Detector) Guess(path string, mode Mode) Candidate {
	exists := fsutil.PathExists(path)

	if d.hints != nil {
		if id, ok := d.hints.Get(path); ok {
			if f, ok := d.catalog.ByID(id); ok {
				return Candidate{Format: f, OK: true, Source: ConfidenceHint, FileExists: exists}
			}
		}
	}

	if mode == ModeLoad && exists && d.io != nil {
		if f, ok := d.io.SniffFormat(path); ok {
			return Candidate{Format: f, OK: true, Source: ConfidenceMagic, FileExists: exists}
		}
	}

	if f, ok := d.catalog.ByExtension(path); ok {
		return Candidate{Format: f, OK: true, Source: ConfidenceExtension, FileExists: exists}
	}

	if mode == ModeSave && d.saveDefault != "" {
		if f, ok := d.catalog.ByID(d.saveDefault); ok {
			return Candidate{Format: f, OK: true, Source: ConfidenceDefault, FileExists: exists}
		}
	}

	return Candidate{Source: ConfidenceNone, FileExists: exists}
}
