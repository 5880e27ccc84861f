package types

// CreateSessionRequest starts a new wizard session.
type CreateSessionRequest struct {
	// Session mode: "load" or "save".
	// example: load
	Mode string `json:"mode" example:"load"`
	// Load target: "main" or "overlay". Ignored in save mode.
	// example: overlay
	Target string `json:"target,omitempty" example:"overlay"`
	// Allow an overlay whose grid does not match the reference; the caller
	// is expected to run registration afterwards.
	// example: true
	AllowGeometryMismatch bool `json:"allow_geometry_mismatch,omitempty" example:"true"`
	// Display the overlay as a sticky semi-transparent layer.
	// example: true
	StickyOverlay bool `json:"sticky_overlay,omitempty" example:"true"`
	// Color map for the sticky overlay.
	// example: jet
	ColorMap string `json:"color_map,omitempty" example:"jet"`
	// Default save format id. Ignored in load mode.
	// example: nifti
	DefaultFormat string `json:"default_format,omitempty" example:"nifti"`
	// Display name shown in dialog titles. Save mode only.
	// example: Segmentation
	DisplayName string `json:"display_name,omitempty" example:"Segmentation"`
}

// SessionInfo is the caller-visible session state.
type SessionInfo struct {
	// Session identifier.
	// example: 6d5c0c63-6a0f-4a8e-9b1a-0d5f6e9c1a2b
	ID string `json:"id" example:"6d5c0c63-6a0f-4a8e-9b1a-0d5f6e9c1a2b"`
	// Session mode: "load" or "save".
	// example: load
	Mode string `json:"mode" example:"load"`
	// Display name of the active delegate.
	// example: Overlay Image
	DisplayName string `json:"display_name" example:"Overlay Image"`
	// Whether a load has completed successfully.
	// example: false
	ImageLoaded bool `json:"image_loaded" example:"false"`
	// Diagnostics accumulated by the last operation.
	Warnings []Warning `json:"warnings"`
	// Whether the loaded layer is an overlay.
	// example: true
	Overlay bool `json:"overlay,omitempty" example:"true"`
	// Whether registration may be used for this load.
	// example: true
	UseRegistration bool `json:"use_registration,omitempty" example:"true"`
}

// GuessResponse is the result of format detection for a path.
type GuessResponse struct {
	// Detected format id; empty when undetermined.
	// example: nifti
	FormatID string `json:"format_id,omitempty" example:"nifti"`
	// Display name for the detected format.
	// example: NiFTI
	FormatName string `json:"format_name,omitempty" example:"NiFTI"`
	// Which detection layer matched: hint, magic_number, extension,
	// save_default or none.
	// example: extension
	Source string `json:"source" example:"extension"`
	// Whether any layer matched. When false the caller must prompt.
	// example: true
	OK bool `json:"ok" example:"true"`
	// Whether the file exists on disk (computed once, load mode).
	// example: true
	FileExists bool `json:"file_exists" example:"true"`
}

// LoadRequest asks the session to load an image.
type LoadRequest struct {
	// Path to the file to load.
	// example: /data/scan.nii.gz
	Path string `json:"path" example:"/data/scan.nii.gz"`
	// Optional explicit format id, overriding detection.
	// example: nifti
	Format string `json:"format,omitempty" example:"nifti"`
}

// SaveRequest asks the session to save its image.
type SaveRequest struct {
	// Destination path.
	// example: /data/out.nii.gz
	Path string `json:"path" example:"/data/out.nii.gz"`
	// Optional explicit format id, overriding detection.
	// example: nifti
	Format string `json:"format,omitempty" example:"nifti"`
}

// DicomScanRequest asks the session to enumerate a DICOM directory.
type DicomScanRequest struct {
	// Directory to enumerate.
	// example: /data/study1
	Dir string `json:"dir" example:"/data/study1"`
}

// DicomLoadRequest loads one series from the last enumeration.
type DicomLoadRequest struct {
	// Path associated with the load, used for history and hints.
	// example: /data/study1
	Path string `json:"path" example:"/data/study1"`
	// Series index from the enumeration.
	// example: 1
	Index int `json:"index" example:"1"`
}

// RegistrationRequest starts a background registration run.
type RegistrationRequest struct {
	// Transform family: rigid or affine.
	// example: rigid
	Mode string `json:"mode,omitempty" example:"rigid"`
	// Similarity metric: mean_squares, mutual_information or correlation.
	// example: mean_squares
	Metric string `json:"metric,omitempty" example:"mean_squares"`
	// Initialization: identity, centers or moments.
	// example: centers
	Init string `json:"init,omitempty" example:"centers"`
}

// FormatsResponse wraps the format catalog for a session's mode.
type FormatsResponse struct {
	// Formats usable in the session's mode, presentation order.
	Formats []FormatInfo `json:"formats"`
	// File-dialog filter string built from the catalog.
	// example: NiFTI (*.nii.gz *.nii);;NRRD (*.nrrd)
	Filter string `json:"filter" example:"NiFTI (*.nii.gz *.nii);;NRRD (*.nrrd)"`
}

// DicomContentsResponse wraps the current series list.
type DicomContentsResponse struct {
	Series []SeriesInfo `json:"series"`
}

// SummaryResponse carries the post-load summary rows in display order.
type SummaryResponse struct {
	Items []SummaryItemRow `json:"items"`
}

// SummaryItemRow is one row of the post-load summary.
type SummaryItemRow struct {
	// Row key, e.g. dimensions, spacing, data_type.
	// example: data_type
	Key string `json:"key" example:"data_type"`
	// Rendered value.
	// example: int16
	Value string `json:"value" example:"int16"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
