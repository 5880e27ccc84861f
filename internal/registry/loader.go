// Package registry loads the file-format catalog, either from a YAML file or
// from the built-in defaults.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"imaged/internal/common/fsutil"
	"imaged/internal/imageio"
)

// Defaults returns the built-in format catalog. Order is presentation order;
// extension matching is first-match-wins, so more specific formats come first.
func Defaults() *imageio.Catalog {
	return imageio.NewCatalog([]imageio.Format{
		{ID: "dicom", Name: "DICOM", Extensions: []string{"dcm", "dicom"},
			Magic: []byte("DICM"), MagicOffset: 128, CanRead: true, SupportsSeries: true},
		{ID: "nifti", Name: "NiFTI", Extensions: []string{"nii.gz", "nii"}, CanRead: true, CanWrite: true},
		{ID: "nrrd", Name: "NRRD", Extensions: []string{"nrrd", "nhdr"},
			Magic: []byte("NRRD"), CanRead: true, CanWrite: true},
		{ID: "metaimage", Name: "MetaImage", Extensions: []string{"mha", "mhd"}, CanRead: true, CanWrite: true},
		{ID: "vtk", Name: "VTK Image", Extensions: []string{"vtk"},
			Magic: []byte("# vtk DataFile"), CanRead: true, CanWrite: true},
		{ID: "analyze", Name: "Analyze", Extensions: []string{"hdr", "img.gz", "img"}, CanRead: true, CanWrite: true},
		{ID: "gipl", Name: "GIPL", Extensions: []string{"gipl.gz", "gipl"}, CanRead: true, CanWrite: true},
		{ID: "raw", Name: "Raw Binary", Extensions: []string{"raw"}, CanRead: true},
	})
}

// LoadFile reads a format catalog from a YAML file. The file fully replaces
// the defaults; an empty formats list is an error because a wizard without
// formats is unusable.
func LoadFile(path string) (*imageio.Catalog, error) {
	expanded, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read formats file: %w", err)
	}
	var doc struct {
		Formats []imageio.Format `yaml:"formats"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse formats file: %w", err)
	}
	if len(doc.Formats) == 0 {
		return nil, fmt.Errorf("formats file %s defines no formats", path)
	}
	for i := range doc.Formats {
		f := &doc.Formats[i]
		if f.ID == "" {
			return nil, fmt.Errorf("formats file %s: entry %d has no id", path, i)
		}
		if len(f.Extensions) == 0 {
			return nil, fmt.Errorf("format %s has no extensions", f.ID)
		}
		if f.MagicString != "" {
			f.Magic = []byte(f.MagicString)
		}
	}
	return imageio.NewCatalog(doc.Formats), nil
}

// Load returns the catalog from path when given, the defaults otherwise.
func Load(path string) (*imageio.Catalog, error) {
	if path == "" {
		return Defaults(), nil
	}
	return LoadFile(path)
}
