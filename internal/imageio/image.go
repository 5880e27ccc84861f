package imageio

// Metadata describes a decoded image without exposing pixel data. It feeds
// the wizard's summary view and the delegates' geometry checks.
type Metadata struct {
	FileName      string     `json:"file_name"`
	Dims          [3]int     `json:"dims"`
	Spacing       [3]float64 `json:"spacing"`
	Origin        [3]float64 `json:"origin"`
	Orientation   string     `json:"orientation"`
	ByteOrder     string     `json:"byte_order"`
	Components    int        `json:"components"`
	ComponentType string     `json:"component_type"`
	FileSizeBytes int64      `json:"file_size_bytes"`
}

// SameGeometry reports whether two images occupy the same voxel grid. Used to
// validate overlays against a reference image.
func (m Metadata) SameGeometry(other Metadata) bool {
	if m.Dims != other.Dims {
		return false
	}
	const tol = 1e-6
	for i := 0; i < 3; i++ {
		if diff := m.Spacing[i] - other.Spacing[i]; diff > tol || diff < -tol {
			return false
		}
	}
	return true
}

// Center returns the physical center of the image volume.
func (m Metadata) Center() [3]float64 {
	var c [3]float64
	for i := 0; i < 3; i++ {
		c[i] = m.Origin[i] + m.Spacing[i]*float64(m.Dims[i])/2
	}
	return c
}

// Image is the opaque handle returned by a guided I/O backend. The backend
// owns the payload; the wizard only reads metadata and passes the handle
// through to the caller on successful completion.
type Image struct {
	Meta    Metadata
	payload any
}

// NewImage wraps backend-owned pixel data with its metadata.
func NewImage(meta Metadata, payload any) *Image {
	return &Image{Meta: meta, payload: payload}
}

// Payload exposes the backend-owned data to the backend that produced it.
func (img *Image) Payload() any { return img.payload }
