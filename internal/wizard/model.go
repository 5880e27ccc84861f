// Package wizard implements the orchestrating state machine behind the image
// load/save wizard: format detection, delegate-customized validation, DICOM
// series selection, and the background registration hand-off. The model is
// driven by a single caller goroutine; only registration runs off-thread.
package wizard

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"imaged/internal/common/fsutil"
	"imaged/internal/dicom"
	"imaged/internal/events"
	"imaged/internal/imageio"
	"imaged/internal/registration"
)

// OptimizerFactory builds the optimizer for one registration run from the
// reference and overlay metadata and the chosen registration settings.
type OptimizerFactory func(reference, overlay imageio.Metadata,
	mode registration.Mode, metric registration.Metric) registration.Optimizer

// DefaultOptimizerFactory wires the reference mean-squares optimizer, which
// pulls the overlay's volume center onto the reference's.
func DefaultOptimizerFactory(reference, overlay imageio.Metadata,
	_ registration.Mode, _ registration.Metric) registration.Optimizer {
	return &registration.MeanSquaresOptimizer{
		Fixed:  reference.Center(),
		Moving: overlay.Center(),
	}
}

// Deps are the external services a Model composes. IO and Catalog are
// required; the rest default to reasonable in-process implementations.
type Deps struct {
	Catalog      *imageio.Catalog
	IO           imageio.GuidedIO
	Hints        *imageio.HintStore
	Enumerator   dicom.Enumerator
	Materializer dicom.Materializer
	Optimizers   OptimizerFactory
	Registration registration.Config
	Log          zerolog.Logger
}

// Model is the wizard state machine. Not safe for concurrent callers: one
// logical session drives it at a time. See PerformRegistration for the only
// operation that spawns a worker.
type Model struct {
	catalog    *imageio.Catalog
	io         imageio.GuidedIO
	hints      *imageio.HintStore
	detector   *imageio.Detector
	browser    *dicom.Browser
	material   dicom.Materializer
	optFactory OptimizerFactory
	regCfg     registration.Config
	bucket     *events.Bucket
	log        zerolog.Logger

	initialized bool
	mode        imageio.Mode
	loadDel     LoadDelegate
	saveDel     SaveDelegate
	displayName string

	selected  imageio.Format
	suggested struct {
		filename string
		format   imageio.Format
	}
	warnings  []imageio.Warning
	image     *imageio.Image
	reference *imageio.Image
	finalized bool

	// baseOrigin is the overlay's origin as loaded, so repeated transform
	// applications replace rather than compound.
	baseOrigin [3]float64

	overlay         bool
	useRegistration bool
	stickyOverlay   bool
	stickyColorMap  string

	regMode   registration.Mode
	regMetric registration.Metric
	regInit   registration.Init
	runner    *registration.Runner
}

// NewModel composes a model from its dependencies. The model starts
// uninitialized; call InitializeForLoad or InitializeForSave before use.
func NewModel(deps Deps) *Model {
	if deps.Hints == nil {
		deps.Hints = imageio.NewHintStore(0)
	}
	if deps.Optimizers == nil {
		deps.Optimizers = DefaultOptimizerFactory
	}
	m := &Model{
		catalog:    deps.Catalog,
		io:         deps.IO,
		hints:      deps.Hints,
		detector:   imageio.NewDetector(deps.Catalog, deps.Hints, deps.IO),
		material:   deps.Materializer,
		optFactory: deps.Optimizers,
		regCfg:     deps.Registration,
		bucket:     events.NewBucket(),
		log:        deps.Log,
		regMode:    registration.ModeRigid,
		regMetric:  registration.MetricMeanSquares,
		regInit:    registration.InitCenters,
	}
	if deps.Enumerator != nil {
		m.browser = dicom.NewBrowser(deps.Enumerator, deps.Log)
	}
	return m
}

// InitializeForLoad binds the model to load mode with the given delegate and
// resets all per-operation state.
func (m *Model) InitializeForLoad(delegate LoadDelegate) error {
	if delegate == nil {
		return ErrValidation("load delegate must not be nil")
	}
	m.initialized = true
	m.mode = imageio.ModeLoad
	m.loadDel = delegate
	m.saveDel = nil
	m.displayName = delegate.DisplayName()
	m.overlay = delegate.IsOverlay()
	m.useRegistration = delegate.SupportsRegistration()
	switch od := delegate.(type) {
	case LoadOverlayDelegate:
		m.stickyOverlay = od.Sticky
		m.stickyColorMap = od.ColorMap
	case *LoadOverlayDelegate:
		m.stickyOverlay = od.Sticky
		m.stickyColorMap = od.ColorMap
	}
	m.detector.SetSaveDefault("")
	m.Reset()
	return nil
}

// InitializeForSave binds the model to save mode with the given delegate.
func (m *Model) InitializeForSave(delegate SaveDelegate, displayName string) error {
	if delegate == nil {
		return ErrValidation("save delegate must not be nil")
	}
	m.initialized = true
	m.mode = imageio.ModeSave
	m.saveDel = delegate
	m.loadDel = nil
	m.displayName = displayName
	if m.displayName == "" {
		m.displayName = delegate.DisplayName()
	}
	m.overlay = false
	m.useRegistration = false
	m.detector.SetSaveDefault(delegate.DefaultFormatID())
	m.Reset()
	return nil
}

func (m *Model) Mode() imageio.Mode { return m.mode }
func (m *Model) IsLoadMode() bool   { return m.initialized && m.mode == imageio.ModeLoad }
func (m *Model) IsSaveMode() bool   { return m.initialized && m.mode == imageio.ModeSave }
func (m *Model) DisplayName() string {
	return m.displayName
}

// HistoryName returns the history key of the active delegate.
func (m *Model) HistoryName() string {
	switch {
	case m.loadDel != nil:
		return m.loadDel.HistoryName()
	case m.saveDel != nil:
		return m.saveDel.HistoryName()
	}
	return ""
}

// Bucket exposes the model's event bucket so a consumer can poll and clear
// coalesced notifications.
func (m *Model) Bucket() *events.Bucket { return m.bucket }

// Hints exposes the auxiliary hints store.
func (m *Model) Hints() *imageio.HintStore { return m.hints }

// GuessFileFormat runs layered format detection for path in the current mode.
func (m *Model) GuessFileFormat(path string) (imageio.Candidate, error) {
	if !m.initialized {
		return imageio.Candidate{}, ErrUninitialized("GuessFileFormat")
	}
	return m.detector.Guess(path, m.mode), nil
}

// Filter builds the file-dialog filter string for the current mode.
func (m *Model) Filter(lineEntry, extEntry, extSep, rowSep string) string {
	return m.catalog.Filter(m.mode, lineEntry, extEntry, extSep, rowSep)
}

// FormatByName resolves a display name to a format.
func (m *Model) FormatByName(name string) (imageio.Format, bool) { return m.catalog.ByName(name) }

// FormatByID resolves a stable identifier to a format.
func (m *Model) FormatByID(id string) (imageio.Format, bool) { return m.catalog.ByID(id) }

// FormatName returns the display name for a format id.
func (m *Model) FormatName(id string) string {
	if f, ok := m.catalog.ByID(id); ok {
		return f.Name
	}
	return ""
}

// Formats lists the catalog in presentation order.
func (m *Model) Formats() []imageio.Format { return m.catalog.Formats() }

// SetSelectedFormat pins the format used by the next Load/SaveImage,
// overriding detection.
func (m *Model) SetSelectedFormat(f imageio.Format) { m.selected = f }

func (m *Model) SelectedFormat() imageio.Format { return m.selected }

func (m *Model) SetSuggestedFilename(name string) { m.suggested.filename = name }
func (m *Model) SuggestedFilename() string        { return m.suggested.filename }
func (m *Model) SetSuggestedFormat(f imageio.Format) {
	m.suggested.format = f
}
func (m *Model) SuggestedFormat() imageio.Format { return m.suggested.format }

// Warnings returns the diagnostics accumulated by the current operation.
func (m *Model) Warnings() []imageio.Warning {
	out := make([]imageio.Warning, len(m.warnings))
	copy(out, m.warnings)
	return out
}

func (m *Model) appendWarning(w imageio.Warning) {
	m.warnings = append(m.warnings, w)
	m.log.Warn().Str("code", w.Code).Msg(w.Message)
}

// IsImageLoaded reports whether a load completed successfully since the last
// Reset or re-initialization.
func (m *Model) IsImageLoaded() bool { return m.image != nil }

// LoadedImage returns the loaded image handle. Ownership transfers to the
// caller on Finalize; until then the model keeps using it for summary and
// registration queries.
func (m *Model) LoadedImage() *imageio.Image { return m.image }

// SetImage installs the image a save-mode session will write.
func (m *Model) SetImage(img *imageio.Image) { m.image = img }

// TakeImage transfers ownership of the loaded image to the caller and clears
// it from the model. Subsequent summary queries report an unloaded state.
func (m *Model) TakeImage() *imageio.Image {
	img := m.image
	m.image = nil
	return img
}

// SetReferenceImage installs the already-loaded reference used by overlay
// geometry checks and registration.
func (m *Model) SetReferenceImage(img *imageio.Image) { m.reference = img }

func (m *Model) IsOverlay() bool        { return m.overlay }
func (m *Model) UseRegistration() bool  { return m.useRegistration }
func (m *Model) SetUseRegistration(b bool) {
	m.useRegistration = b
}

func (m *Model) StickyOverlay() bool            { return m.stickyOverlay }
func (m *Model) SetStickyOverlay(b bool)        { m.stickyOverlay = b }
func (m *Model) StickyOverlayColorMap() string  { return m.stickyColorMap }
func (m *Model) SetStickyOverlayColorMap(s string) {
	m.stickyColorMap = s
}

// resolveFormat picks the format for an operation: explicit selection first,
// then detection.
func (m *Model) resolveFormat(path string) (imageio.Format, bool) {
	if !m.selected.IsZero() {
		return m.selected, true
	}
	c := m.detector.Guess(path, m.mode)
	return c.Format, c.OK
}

// LoadImage materializes the image at path through the guided I/O backend and
// the active load delegate. On any failure the partially loaded image is
// discarded and prior state preserved.
func (m *Model) LoadImage(ctx context.Context, path string) error {
	if !m.initialized || m.mode != imageio.ModeLoad {
		return ErrUninitialized("LoadImage")
	}
	m.warnings = nil
	m.finalized = false

	format, ok := m.resolveFormat(path)
	if !ok {
		return ErrValidation("file format could not be determined; select one explicitly")
	}
	if format.SupportsSeries {
		// A DICOM path needs an explicit series selection first; loading a
		// bare DICOM path would silently pick an arbitrary series.
		if m.browser == nil {
			return ErrValidation("dicom loading is not configured")
		}
		// A selection only applies to paths under the directory it was made
		// in; a stale selection must not satisfy a load elsewhere.
		if desc, selected := m.browser.Selected(); selected && m.browser.Covers(path) {
			return m.loadSeries(ctx, path, desc, format)
		}
		if fsutil.IsDir(path) {
			// A directory path starts a browse instead of a load.
			if err := m.browser.ProcessDirectory(ctx, path); err != nil {
				return err
			}
			return ErrValidation("directory enumerated; select a series and load it")
		}
		return ErrValidation("dicom path requires a prior series selection; browse the directory first")
	}

	if !m.io.CanRead(format) {
		return ErrValidation("backend cannot read format " + format.Name)
	}
	if !m.loadDel.CanHandleFormat(format) {
		return ErrValidation(m.displayName + " cannot be loaded from format " + format.Name)
	}

	if wr, ok := m.io.(imageio.WarningReporter); ok {
		wr.SetWarningSink(m.appendWarning)
	}
	img, err := m.io.Decode(ctx, path, format)
	if err != nil {
		return ErrDecode(path, err)
	}
	return m.commitLoad(path, img, format)
}

// loadSeries runs the selected DICOM series through the same load pipeline as
// a single-file load.
func (m *Model) loadSeries(ctx context.Context, path string, desc dicom.SeriesDescriptor, format imageio.Format) error {
	if m.material == nil {
		return ErrValidation("dicom series materialization is not configured")
	}
	img, err := m.material.MaterializeSeries(ctx, desc)
	if err != nil {
		return ErrDecode(path, err)
	}
	return m.commitLoad(path, img, format)
}

func (m *Model) commitLoad(path string, img *imageio.Image, format imageio.Format) error {
	if err := m.loadDel.ValidateImage(img, m.reference); err != nil {
		m.appendWarning(imageio.Warning{Code: "validation", Message: err.Error()})
		return ErrValidation(err.Error())
	}
	m.image = img
	m.baseOrigin = img.Meta.Origin
	m.selected = format
	m.hints.Set(path, format.ID)
	m.bucket.Put(events.KindImageLoaded, m)
	m.log.Info().Str("path", path).Str("format", format.ID).Msg("image loaded")
	return nil
}

// SaveImage writes the session's image to path through the guided I/O
// backend and the active save delegate.
func (m *Model) SaveImage(ctx context.Context, path string) error {
	if !m.initialized || m.mode != imageio.ModeSave {
		return ErrUninitialized("SaveImage")
	}
	if m.image == nil {
		return ErrValidation("no image set to save")
	}
	m.warnings = nil
	m.finalized = false

	format, ok := m.resolveFormat(path)
	if !ok {
		return ErrValidation("save format could not be determined")
	}
	if err := m.saveDel.ValidateDestination(path, format); err != nil {
		return ErrValidation(err.Error())
	}
	if err := m.io.Encode(ctx, m.image, path, format); err != nil {
		return ErrEncode(path, err)
	}
	m.selected = format
	m.suggested.filename = path
	m.hints.Set(path, format.ID)
	m.saveDel.PostSave(path, format)
	m.bucket.Put(events.KindImageSaved, m)
	m.log.Info().Str("path", path).Str("format", format.ID).Msg("image saved")
	return nil
}

// ProcessDicomDirectory enumerates candidate series under dir.
func (m *Model) ProcessDicomDirectory(ctx context.Context, dir string) error {
	if !m.initialized {
		return ErrUninitialized("ProcessDicomDirectory")
	}
	if m.browser == nil {
		return ErrValidation("dicom loading is not configured")
	}
	return m.browser.ProcessDirectory(ctx, dir)
}

// DicomContents returns the series list from the last enumeration.
func (m *Model) DicomContents() []dicom.SeriesDescriptor {
	if m.browser == nil {
		return nil
	}
	return m.browser.Contents()
}

// LoadDicomSeries selects the index-th series of the last enumeration and
// loads it through the standard pipeline. The format is implicitly DICOM.
func (m *Model) LoadDicomSeries(ctx context.Context, path string, index int) error {
	if !m.initialized || m.mode != imageio.ModeLoad {
		return ErrUninitialized("LoadDicomSeries")
	}
	if m.browser == nil {
		return ErrValidation("dicom loading is not configured")
	}
	desc, err := m.browser.Select(index)
	if err != nil {
		return err
	}
	m.warnings = nil
	m.finalized = false
	format, _ := m.catalog.ByID("dicom")
	return m.loadSeries(ctx, path, desc, format)
}

// Reset clears all per-operation state. Mode and delegate survive; those
// require re-initialization to change.
func (m *Model) Reset() {
	m.warnings = nil
	m.selected = imageio.Format{}
	m.suggested.filename = ""
	m.suggested.format = imageio.Format{}
	m.image = nil
	m.finalized = false
	m.bucket.Clear()
	if m.browser != nil {
		m.browser.Reset()
	}
	m.runner = nil
}

// Finalize runs the delegate's history bookkeeping after a successful
// operation. Idempotent: repeated calls with no state change in between do
// nothing.
func (m *Model) Finalize() {
	if m.finalized {
		return
	}
	m.finalized = true
	name := m.HistoryName()
	file := m.suggested.filename
	if m.image != nil && file == "" {
		file = m.image.Meta.FileName
	}
	if file != "" {
		m.hints.Set(file, m.selected.ID)
		switch {
		case m.loadDel != nil:
			m.loadDel.UpdateHistory(file)
		case m.saveDel != nil:
			m.saveDel.UpdateHistory(file)
		}
	}
	m.log.Info().Str("history", name).Str("file", file).Msg("wizard finalized")
}

// BrowseDirectory returns the directory a file dialog should open in for the
// given entered path, falling back to the suggested filename's directory.
func (m *Model) BrowseDirectory(file string) string {
	if file != "" {
		return filepath.Dir(file)
	}
	if m.suggested.filename != "" {
		return filepath.Dir(m.suggested.filename)
	}
	return "."
}

// FileSizeInBytes returns the on-disk size of file, 0 when unknown.
func (m *Model) FileSizeInBytes(file string) int64 {
	st, err := os.Stat(file)
	if err != nil {
		return 0
	}
	return st.Size()
}

// Registration settings, closed domains with labels for presentation.
func (m *Model) RegistrationMode() registration.Mode       { return m.regMode }
func (m *Model) SetRegistrationMode(v registration.Mode)   { m.regMode = v }
func (m *Model) RegistrationMetric() registration.Metric   { return m.regMetric }
func (m *Model) SetRegistrationMetric(v registration.Metric) { m.regMetric = v }
func (m *Model) RegistrationInit() registration.Init       { return m.regInit }
func (m *Model) SetRegistrationInit(v registration.Init)   { m.regInit = v }

// PerformRegistration starts the background alignment of the loaded overlay
// against the reference image. It is the only operation that spawns a worker;
// the caller polls RegistrationSnapshot and the event bucket.
func (m *Model) PerformRegistration() error {
	if !m.initialized || m.mode != imageio.ModeLoad {
		return ErrUninitialized("PerformRegistration")
	}
	if !m.useRegistration {
		return ErrRegistrationPrecondition("registration is not enabled for this load")
	}
	if m.reference == nil {
		return ErrRegistrationPrecondition("registration requires a loaded reference image")
	}
	if m.image == nil {
		return ErrRegistrationPrecondition("registration requires a loaded overlay image")
	}

	opt := m.optFactory(m.reference.Meta, m.image.Meta, m.regMode, m.regMetric)
	if m.runner == nil || m.runner.Snapshot().Status != registration.StatusRunning {
		m.runner = registration.NewRunner(opt, m.bucket, m, m.regCfg, m.log)
	}
	return m.runner.Start(m.initialTransform())
}

func (m *Model) initialTransform() registration.Transform {
	switch m.regInit {
	case registration.InitCenters, registration.InitMoments:
		fc := m.reference.Meta.Center()
		mc := m.image.Meta.Center()
		return registration.Translation(fc[0]-mc[0], fc[1]-mc[1], fc[2]-mc[2])
	default:
		return registration.Identity()
	}
}

// CancelRegistration requests cooperative cancellation of the current run.
func (m *Model) CancelRegistration() {
	if m.runner != nil {
		m.runner.Cancel()
	}
}

// RegistrationSnapshot returns the latest progress snapshot; an idle snapshot
// if registration has never run.
func (m *Model) RegistrationSnapshot() registration.Snapshot {
	if m.runner == nil {
		return registration.Snapshot{Status: registration.StatusIdle, Objective: nan()}
	}
	return m.runner.Snapshot()
}

// RegistrationObjective returns the latest objective value, NaN before any run.
func (m *Model) RegistrationObjective() float64 { return m.RegistrationSnapshot().Objective }

// UpdateImageTransformFromRegistration applies the latest snapshot's
// transform to the loaded overlay's spatial metadata. Calling it while the
// run is still in flight applies the best-effort transform so far, which is
// what live preview wants.
func (m *Model) UpdateImageTransformFromRegistration() error {
	if m.image == nil {
		return ErrRegistrationPrecondition("no overlay image loaded")
	}
	s := m.RegistrationSnapshot()
	if s.Transform.IsZero() {
		return ErrRegistrationPrecondition("registration has not produced a transform yet")
	}
	m.image.Meta.Origin = s.Transform.ApplyPoint(m.baseOrigin)
	return nil
}

func nan() float64 { return math.NaN() }
