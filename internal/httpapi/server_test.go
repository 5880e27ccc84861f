package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"imaged/internal/dicom"
	"imaged/internal/imageio"
	"imaged/pkg/types"
)

type apiFixture struct {
	srv  *Server
	mux  http.Handler
	io   *imageio.FakeIO
	enum *dicom.FakeEnumerator
}

func testCatalog() *imageio.Catalog {
	return imageio.NewCatalog([]imageio.Format{
		{ID: "dicom", Name: "DICOM", Extensions: []string{"dcm", "dicom"}, CanRead: true, SupportsSeries: true},
		{ID: "nifti", Name: "NiFTI", Extensions: []string{"nii.gz", "nii"}, CanRead: true, CanWrite: true},
		{ID: "nrrd", Name: "NRRD", Extensions: []string{"nrrd"}, CanRead: true, CanWrite: true},
	})
}

func volumeFixture(name string, origin [3]float64) *imageio.Image {
	return imageio.NewImage(imageio.Metadata{
		FileName:      name,
		Dims:          [3]int{128, 128, 64},
		Spacing:       [3]float64{1, 1, 2},
		Origin:        origin,
		Orientation:   "RAS",
		ByteOrder:     "little",
		Components:    1,
		ComponentType: "int16",
		FileSizeBytes: 2 * 128 * 128 * 64,
	}, nil)
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	io := imageio.NewFakeIO()
	enum := dicom.NewFakeEnumerator()
	srv := NewServer(Options{
		Catalog:      testCatalog(),
		IO:           io,
		Enumerator:   enum,
		Materializer: enum,
		Log:          zerolog.Nop(),
	})
	return &apiFixture{srv: srv, mux: NewMux(srv), io: io, enum: enum}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v body=%q", err, w.Body.String())
	}
	return v
}

func (f *apiFixture) openSession(t *testing.T, req types.CreateSessionRequest) types.SessionInfo {
	t.Helper()
	w := f.do(t, http.MethodPost, "/sessions", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session status=%d body=%q", w.Code, w.Body.String())
	}
	return decodeBody[types.SessionInfo](t, w)
}

func TestCreateSession_Load(t *testing.T) {
	f := newAPIFixture(t)
	info := f.openSession(t, types.CreateSessionRequest{Mode: "load"})
	if info.ID == "" {
		t.Fatal("expected a session id")
	}
	if info.Mode != "load" || info.Overlay || info.ImageLoaded {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestCreateSession_BadMode(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodPost, "/sessions", types.CreateSessionRequest{Mode: "browse"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCreateSession_BadContentType(t *testing.T) {
	f := newAPIFixture(t)
	r := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"mode":"load"}`))
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSessionNotFound(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/sessions/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestGuess(t *testing.T) {
	f := newAPIFixture(t)
	info := f.openSession(t, types.CreateSessionRequest{Mode: "load"})

	w := f.do(t, http.MethodGet, "/sessions/"+info.ID+"/guess?path=/data/scan.nii.gz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
	guess := decodeBody[types.GuessResponse](t, w)
	if !guess.OK || guess.FormatID != "nifti" || guess.Source != "extension" {
		t.Fatalf("unexpected guess: %+v", guess)
	}
	if guess.FileExists {
		t.Fatal("file should not exist")
	}
}

func TestGuess_MissingPath(t *testing.T) {
	f := newAPIFixture(t)
	info := f.openSession(t, types.CreateSessionRequest{Mode: "load"})
	w := f.do(t, http.MethodGet, "/sessions/"+info.ID+"/guess", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestFormats_LoadMode(t *testing.T) {
	f := newAPIFixture(t)
	info := f.openSession(t, types.CreateSessionRequest{Mode: "load"})
	w := f.do(t, http.MethodGet, "/sessions/"+info.ID+"/formats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	resp := decodeBody[types.FormatsResponse](t, w)
	if len(resp.Formats) != 3 {
		t.Fatalf("formats=%d", len(resp.Formats))
	}
	if !strings.Contains(resp.Filter, "NiFTI") {
		t.Fatalf("filter=%q", resp.Filter)
	}
}

func TestLoadThenSave_EndToEnd(t *testing.T) {
	f := newAPIFixture(t)
	f.io.AddFixture("/data/scan.nii.gz", volumeFixture("/data/scan.nii.gz", [3]float64{-64, -64, -64}))

	load := f.openSession(t, types.CreateSessionRequest{Mode: "load"})
	w := f.do(t, http.MethodPost, "/sessions/"+load.ID+"/load", types.LoadRequest{Path: "/data/scan.nii.gz"})
	if w.Code != http.StatusOK {
		t.Fatalf("load status=%d body=%q", w.Code, w.Body.String())
	}
	if info := decodeBody[types.SessionInfo](t, w); !info.ImageLoaded {
		t.Fatalf("expected image loaded: %+v", info)
	}

	// The summary reflects the loaded metadata.
	w = f.do(t, http.MethodGet, "/sessions/"+load.ID+"/summary", nil)
	sum := decodeBody[types.SummaryResponse](t, w)
	byKey := map[string]string{}
	for _, row := range sum.Items {
		byKey[row.Key] = row.Value
	}
	if byKey["dimensions"] != "128 x 128 x 64" {
		t.Fatalf("dimensions=%q", byKey["dimensions"])
	}

	// A new save session picks up the loaded image as its subject.
	out := filepath.Join(t.TempDir(), "out.nii.gz")
	save := f.openSession(t, types.CreateSessionRequest{Mode: "save", DefaultFormat: "nifti"})
	w = f.do(t, http.MethodPost, "/sessions/"+save.ID+"/save", types.SaveRequest{Path: out})
	if w.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%q", w.Code, w.Body.String())
	}
	if len(f.io.Encoded) != 1 || f.io.Encoded[0] != out {
		t.Fatalf("encoded=%v", f.io.Encoded)
	}
}

func TestLoad_DecodeError(t *testing.T) {
	f := newAPIFixture(t)
	f.io.FailDecode("truncated header")
	info := f.openSession(t, types.CreateSessionRequest{Mode: "load"})
	w := f.do(t, http.MethodPost, "/sessions/"+info.ID+"/load", types.LoadRequest{Path: "/data/scan.nii.gz"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
	resp := decodeBody[types.ErrorResponse](t, w)
	if !strings.Contains(resp.Error, "truncated header") {
		t.Fatalf("error=%q", resp.Error)
	}
}

func TestLoad_UnknownFormat(t *testing.T) {
	f := newAPIFixture(t)
	info := f.openSession(t, types.CreateSessionRequest{Mode: "load"})
	w := f.do(t, http.MethodPost, "/sessions/"+info.ID+"/load", types.LoadRequest{Path: "/data/x", Format: "bmp"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSave_WithoutLoadedImage(t *testing.T) {
	f := newAPIFixture(t)
	info := f.openSession(t, types.CreateSessionRequest{Mode: "save"})
	w := f.do(t, http.MethodPost, "/sessions/"+info.ID+"/save", types.SaveRequest{Path: "/data/out.nii.gz"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestDicomFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.enum.Series["/data/study1"] = []dicom.SeriesDescriptor{
		{UID: "1.2.3", Description: "T1", Files: []string{"a.dcm", "b.dcm"}},
		{UID: "1.2.4", Description: "T2", Files: []string{"c.dcm"}},
	}
	f.enum.Images["1.2.4"] = volumeFixture("/data/study1", [3]float64{0, 0, 0})

	info := f.openSession(t, types.CreateSessionRequest{Mode: "load"})
	base := "/sessions/" + info.ID

	w := f.do(t, http.MethodPost, base+"/dicom/scan", types.DicomScanRequest{Dir: "/data/study1"})
	if w.Code != http.StatusOK {
		t.Fatalf("scan status=%d body=%q", w.Code, w.Body.String())
	}
	contents := decodeBody[types.DicomContentsResponse](t, w)
	if len(contents.Series) != 2 || contents.Series[0].FileCount != 2 {
		t.Fatalf("unexpected contents: %+v", contents)
	}

	w = f.do(t, http.MethodPost, base+"/dicom/load", types.DicomLoadRequest{Path: "/data/study1", Index: 7})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range status=%d", w.Code)
	}

	w = f.do(t, http.MethodPost, base+"/dicom/load", types.DicomLoadRequest{Path: "/data/study1", Index: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("series load status=%d body=%q", w.Code, w.Body.String())
	}
	if got := decodeBody[types.SessionInfo](t, w); !got.ImageLoaded {
		t.Fatalf("expected image loaded: %+v", got)
	}
}

func TestDicomScan_Unreadable(t *testing.T) {
	f := newAPIFixture(t)
	f.enum.Err = errors.New("permission denied")
	info := f.openSession(t, types.CreateSessionRequest{Mode: "load"})
	w := f.do(t, http.MethodPost, "/sessions/"+info.ID+"/dicom/scan", types.DicomScanRequest{Dir: "/secret"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestRegistration_PreconditionOnMainSession(t *testing.T) {
	f := newAPIFixture(t)
	f.io.AddFixture("/data/scan.nii.gz", volumeFixture("/data/scan.nii.gz", [3]float64{-64, -64, -64}))
	info := f.openSession(t, types.CreateSessionRequest{Mode: "load"})
	f.do(t, http.MethodPost, "/sessions/"+info.ID+"/load", types.LoadRequest{Path: "/data/scan.nii.gz"})

	w := f.do(t, http.MethodPost, "/sessions/"+info.ID+"/registration", types.RegistrationRequest{})
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestRegistration_BadMetric(t *testing.T) {
	f := newAPIFixture(t)
	info := f.openSession(t, types.CreateSessionRequest{Mode: "load", Target: "overlay"})
	w := f.do(t, http.MethodPost, "/sessions/"+info.ID+"/registration", types.RegistrationRequest{Metric: "ncc"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestRegistration_EndToEnd(t *testing.T) {
	f := newAPIFixture(t)
	f.io.AddFixture("/data/main.nii.gz", volumeFixture("/data/main.nii.gz", [3]float64{-64, -64, -64}))
	f.io.AddFixture("/data/over.nii.gz", volumeFixture("/data/over.nii.gz", [3]float64{-54, -64, -60}))

	main := f.openSession(t, types.CreateSessionRequest{Mode: "load"})
	w := f.do(t, http.MethodPost, "/sessions/"+main.ID+"/load", types.LoadRequest{Path: "/data/main.nii.gz"})
	if w.Code != http.StatusOK {
		t.Fatalf("main load status=%d body=%q", w.Code, w.Body.String())
	}

	over := f.openSession(t, types.CreateSessionRequest{Mode: "load", Target: "overlay"})
	w = f.do(t, http.MethodPost, "/sessions/"+over.ID+"/load", types.LoadRequest{Path: "/data/over.nii.gz"})
	if w.Code != http.StatusOK {
		t.Fatalf("overlay load status=%d body=%q", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/sessions/"+over.ID+"/registration", types.RegistrationRequest{Init: "centers"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status=%d body=%q", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(5 * time.Second)
	var status types.RegistrationStatus
	for {
		w = f.do(t, http.MethodGet, "/sessions/"+over.ID+"/registration", nil)
		status = decodeBody[types.RegistrationStatus](t, w)
		if status.Status != "running" && status.Status != "idle" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("registration did not finish: %+v", status)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if status.Status != "converged" {
		t.Fatalf("status=%+v", status)
	}
	if status.Objective == nil {
		t.Fatal("expected an objective")
	}

	w = f.do(t, http.MethodPost, "/sessions/"+over.ID+"/registration/apply", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("apply status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestRegistration_Cancel(t *testing.T) {
	f := newAPIFixture(t)
	info := f.openSession(t, types.CreateSessionRequest{Mode: "load", Target: "overlay"})
	w := f.do(t, http.MethodPost, "/sessions/"+info.ID+"/registration/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	status := decodeBody[types.RegistrationStatus](t, w)
	if status.Status != "idle" {
		t.Fatalf("status=%q", status.Status)
	}
}

func TestDeleteSession(t *testing.T) {
	f := newAPIFixture(t)
	info := f.openSession(t, types.CreateSessionRequest{Mode: "load"})
	w := f.do(t, http.MethodDelete, "/sessions/"+info.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	w = f.do(t, http.MethodGet, "/sessions/"+info.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status after delete=%d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	srv := NewServer(Options{Catalog: imageio.NewCatalog(nil), Log: zerolog.Nop()})
	mux := NewMux(srv)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodGet, "/healthz", nil)
	w := f.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "imaged_http_requests_total") {
		t.Fatal("expected imaged http metrics in exposition")
	}
}
