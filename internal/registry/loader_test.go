package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsCatalog(t *testing.T) {
	cat := Defaults()
	if cat.Len() == 0 {
		t.Fatalf("defaults must not be empty")
	}
	if _, ok := cat.ByID("nifti"); !ok {
		t.Fatalf("defaults must include nifti")
	}
	dicom, ok := cat.ByID("dicom")
	if !ok || !dicom.SupportsSeries {
		t.Fatalf("dicom must support series: %+v", dicom)
	}
	// "scan.nii.gz" must resolve to nifti, not analyze's img.gz.
	if f, ok := cat.ByExtension("scan.nii.gz"); !ok || f.ID != "nifti" {
		t.Fatalf("nii.gz resolved to %v", f)
	}
}

func TestLoadFileParsesYAML(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "formats.yaml")
	doc := `formats:
  - id: nifti
    name: NiFTI
    extensions: [nii.gz, nii]
    can_read: true
    can_write: true
  - id: nrrd
    name: NRRD
    extensions: [nrrd]
    magic: NRRD
    can_read: true
`
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cat, err := LoadFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("expected 2 formats, got %d", cat.Len())
	}
	nrrd, _ := cat.ByID("nrrd")
	if string(nrrd.Magic) != "NRRD" {
		t.Fatalf("magic string not materialized: %q", nrrd.Magic)
	}
}

func TestLoadFileRejectsBadCatalogs(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty.yaml":   `formats: []`,
		"no_id.yaml":   "formats:\n  - name: X\n    extensions: [x]\n",
		"no_exts.yaml": "formats:\n  - id: x\n    name: X\n",
	}
	for name, doc := range cases {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadFile(p); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("missing file: expected error")
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cat.Len() != Defaults().Len() {
		t.Fatalf("empty path should yield defaults")
	}
}
