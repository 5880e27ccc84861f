package dicom

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"imaged/internal/imageio"
)

// FSEnumerator is the filesystem-backed enumeration service wired by the
// daemon when no real DICOM indexer is linked in. Each directory whose files
// carry a DICOM extension forms one series: files directly under the scanned
// directory first, then one series per immediate subdirectory.
type FSEnumerator struct{}

func NewFSEnumerator() *FSEnumerator { return &FSEnumerator{} }

func isDicomFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".dcm", ".dicom", ".ima":
		return true
	}
	return false
}

func (e *FSEnumerator) Enumerate(ctx context.Context, dir string) ([]SeriesDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var root []string
	var subdirs []string
	for _, ent := range entries {
		if ent.IsDir() {
			subdirs = append(subdirs, ent.Name())
			continue
		}
		if isDicomFile(ent.Name()) {
			root = append(root, filepath.Join(dir, ent.Name()))
		}
	}
	sort.Strings(root)
	sort.Strings(subdirs)

	var out []SeriesDescriptor
	if len(root) > 0 {
		out = append(out, SeriesDescriptor{
			UID:         dir,
			Description: filepath.Base(dir),
			Files:       root,
		})
	}
	for _, name := range subdirs {
		sub := filepath.Join(dir, name)
		subEntries, err := os.ReadDir(sub)
		if err != nil {
			// A vanished or unreadable subdirectory is not a series.
			continue
		}
		var files []string
		for _, ent := range subEntries {
			if !ent.IsDir() && isDicomFile(ent.Name()) {
				files = append(files, filepath.Join(sub, ent.Name()))
			}
		}
		if len(files) == 0 {
			continue
		}
		sort.Strings(files)
		out = append(out, SeriesDescriptor{
			UID:         sub,
			Description: name,
			Files:       files,
		})
	}
	return out, nil
}

// MaterializeSeries builds a metadata-only image handle over the series
// files, summing their on-disk size. Pixel decoding belongs to a real codec
// backend.
func (e *FSEnumerator) MaterializeSeries(ctx context.Context, desc SeriesDescriptor) (*imageio.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(desc.Files) == 0 {
		return nil, fmt.Errorf("series %s has no files", desc.UID)
	}
	var total int64
	for _, file := range desc.Files {
		st, err := os.Stat(file)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", file, err)
		}
		total += st.Size()
	}
	meta := imageio.Metadata{
		FileName:      desc.UID,
		Dims:          [3]int{0, 0, len(desc.Files)},
		Spacing:       [3]float64{1, 1, 1},
		Orientation:   "RAS",
		Components:    1,
		ComponentType: "unknown",
		FileSizeBytes: total,
	}
	return imageio.NewImage(meta, nil), nil
}
