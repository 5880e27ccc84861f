// Package imageio defines the file-format catalog, the guided I/O contract
// that performs the actual decode/encode work, and the layered format
// detector used by the wizard.
package imageio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects load or save behavior. It is fixed when a wizard session is
// initialized and never changes afterward.
type Mode int

const (
	ModeLoad Mode = iota
	ModeSave
)

func (m Mode) String() string {
	if m == ModeSave {
		return "save"
	}
	return "load"
}

// Format describes one supported file format. The catalog owns these values;
// callers treat them as immutable.
type Format struct {
	// Stable identifier, e.g. "nifti".
	ID string `json:"id" yaml:"id"`
	// Human-friendly name shown in dialogs, e.g. "NiFTI".
	Name string `json:"name" yaml:"name"`
	// Filename extensions without the leading dot, most specific first
	// (e.g. "nii.gz" before "nii").
	Extensions []string `json:"extensions" yaml:"extensions"`
	// Magic header prefix, if the format has one. Used by file-backed
	// guided I/O implementations; offset 0 unless MagicOffset is set.
	Magic       []byte `json:"-" yaml:"-"`
	MagicString string `json:"magic,omitempty" yaml:"magic,omitempty"`
	MagicOffset int    `json:"magic_offset,omitempty" yaml:"magic_offset,omitempty"`
	// Capabilities.
	CanRead        bool `json:"can_read" yaml:"can_read"`
	CanWrite       bool `json:"can_write" yaml:"can_write"`
	SupportsSeries bool `json:"supports_series,omitempty" yaml:"supports_series,omitempty"`
}

// IsZero reports whether f is the undetermined format.
func (f Format) IsZero() bool { return f.ID == "" }

// MatchesExtension reports whether name ends in one of the format's
// registered extensions. Comparison is case-insensitive.
func (f Format) MatchesExtension(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	for _, ext := range f.Extensions {
		if strings.HasSuffix(lower, "."+strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Catalog is an ordered set of formats. Order is the presentation order used
// for filter strings and extension matching (first match wins).
type Catalog struct {
	formats []Format
}

func NewCatalog(formats []Format) *Catalog {
	out := make([]Format, len(formats))
	copy(out, formats)
	return &Catalog{formats: out}
}

// Formats returns a copy of the catalog contents.
func (c *Catalog) Formats() []Format {
	out := make([]Format, len(c.formats))
	copy(out, c.formats)
	return out
}

func (c *Catalog) Len() int { return len(c.formats) }

// ByID looks a format up by its stable identifier.
func (c *Catalog) ByID(id string) (Format, bool) {
	for _, f := range c.formats {
		if f.ID == id {
			return f, true
		}
	}
	return Format{}, false
}

// ByName looks a format up by its display name.
func (c *Catalog) ByName(name string) (Format, bool) {
	for _, f := range c.formats {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Format{}, false
}

// ByExtension returns the first format whose extension list matches name.
func (c *Catalog) ByExtension(name string) (Format, bool) {
	for _, f := range c.formats {
		if f.MatchesExtension(name) {
			return f, true
		}
	}
	return Format{}, false
}

// Filter builds a filter string for file dialogs. lineEntry is a printf
// format whose first %s is the format name and second %s the rendered
// extension list; extEntry formats a single extension. For Qt the arguments
// would be "%s (%s)", "*.%s", " ", ";;".
func (c *Catalog) Filter(mode Mode, lineEntry, extEntry, extSep, rowSep string) string {
	var rows []string
	for _, f := range c.formats {
		if mode == ModeLoad && !f.CanRead {
			continue
		}
		if mode == ModeSave && !f.CanWrite {
			continue
		}
		exts := make([]string, 0, len(f.Extensions))
		for _, e := range f.Extensions {
			exts = append(exts, fmt.Sprintf(extEntry, e))
		}
		rows = append(rows, fmt.Sprintf(lineEntry, f.Name, strings.Join(exts, extSep)))
	}
	return strings.Join(rows, rowSep)
}
