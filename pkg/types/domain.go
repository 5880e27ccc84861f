package types

// FormatInfo describes one supported file format.
type FormatInfo struct {
	// Stable identifier for the format.
	// example: nifti
	ID string `json:"id" example:"nifti"`
	// Human-friendly name.
	// example: NiFTI
	Name string `json:"name" example:"NiFTI"`
	// Filename extensions without the leading dot.
	// example: ["nii.gz","nii"]
	Extensions []string `json:"extensions" example:"nii.gz,nii"`
	// Whether the backend can decode this format.
	// example: true
	CanRead bool `json:"can_read" example:"true"`
	// Whether the backend can encode this format.
	// example: true
	CanWrite bool `json:"can_write" example:"true"`
	// Whether the format is organized as multi-file series (DICOM).
	// example: false
	SupportsSeries bool `json:"supports_series,omitempty" example:"false"`
}

// SeriesInfo summarizes one candidate DICOM series.
type SeriesInfo struct {
	// Ordinal within the enumeration; pass this to the series load call.
	// example: 1
	Index int `json:"index" example:"1"`
	// Series instance UID when the enumeration service provides one.
	// example: 1.2.840.113619.2.5.1
	UID string `json:"uid,omitempty" example:"1.2.840.113619.2.5.1"`
	// Description shown to the user.
	// example: T1 MPRAGE SAG
	Description string `json:"description" example:"T1 MPRAGE SAG"`
	// Number of constituent files.
	// example: 176
	FileCount int `json:"file_count" example:"176"`
}

// Warning is a non-fatal diagnostic accumulated during a load or save.
type Warning struct {
	// Machine-readable warning category.
	// example: spacing
	Code string `json:"code" example:"spacing"`
	// Human-readable detail.
	// example: unusual voxel spacing 0.1mm
	Message string `json:"message" example:"unusual voxel spacing 0.1mm"`
}

// RegistrationStatus is a poll-friendly projection of the worker snapshot.
type RegistrationStatus struct {
	// Lifecycle state: idle, running, converged, cancelled or failed.
	// example: running
	Status string `json:"status" example:"running"`
	// Current objective value; absent before the first run.
	Objective *float64 `json:"objective,omitempty"`
	// Completed optimizer iterations.
	// example: 42
	Iteration int `json:"iteration" example:"42"`
	// Translation component of the current transform.
	Translation [3]float64 `json:"translation"`
	// Whether a coalesced progress notification was pending when polled;
	// polling drains the pending flag.
	Pending bool `json:"pending"`
	// Failure detail when status is failed.
	Error string `json:"error,omitempty"`
}
