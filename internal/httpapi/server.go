package httpapi

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imaged/internal/events"
	"imaged/internal/imageio"
	"imaged/internal/registration"
	"imaged/internal/wizard"
	"imaged/pkg/types"
)

// maxBodyBytes limits request bodies on JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes configures the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// decodeJSON enforces content type and body limits before decoding into v.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// NewMux wires the session API onto a chi router.
func NewMux(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(requestLogger)
	r.Use(MetricsMiddleware)

	r.Post("/sessions", s.handleCreateSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.withSession(handleSessionInfo))
		r.Delete("/", s.handleDeleteSession)
		r.Get("/formats", s.withSession(handleFormats))
		r.Get("/guess", s.withSession(handleGuess))
		r.Post("/load", s.withSession(s.handleLoad))
		r.Post("/save", s.withSession(handleSave))
		r.Get("/summary", s.withSession(handleSummary))
		r.Post("/dicom/scan", s.withSession(handleDicomScan))
		r.Get("/dicom", s.withSession(handleDicomContents))
		r.Post("/dicom/load", s.withSession(handleDicomLoad))
		r.Post("/registration", s.withSession(handleRegistrationStart))
		r.Get("/registration", s.withSession(handleRegistrationStatus))
		r.Post("/registration/cancel", s.withSession(handleRegistrationCancel))
		r.Post("/registration/apply", s.withSession(handleRegistrationApply))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no format catalog"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// withSession resolves the session from the URL, locks it and runs the
// handler. Unknown ids get a 404.
func (s *Server) withSession(h func(w http.ResponseWriter, r *http.Request, sess *session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.getSession(chi.URLParam(r, "id"))
		if !ok {
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		h(w, r, sess)
	}
}

// handleCreateSession opens a wizard session.
//
//	@Summary	Open a wizard session
//	@Accept		json
//	@Produce	json
//	@Param		request	body		types.CreateSessionRequest	true	"session parameters"
//	@Success	201		{object}	types.SessionInfo
//	@Failure	422		{object}	types.ErrorResponse
//	@Router		/sessions [post]
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req types.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := s.createSession(req)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sess.info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.closeSession(chi.URLParam(r, "id")) {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleSessionInfo(w http.ResponseWriter, r *http.Request, sess *session) {
	writeJSON(w, sess.info())
}

// handleFormats lists the formats usable in the session's mode plus the
// file-dialog filter string.
func handleFormats(w http.ResponseWriter, r *http.Request, sess *session) {
	m := sess.model
	mode := m.Mode()
	var out []types.FormatInfo
	for _, f := range m.Formats() {
		if mode == imageio.ModeLoad && !f.CanRead {
			continue
		}
		if mode == imageio.ModeSave && !f.CanWrite {
			continue
		}
		out = append(out, types.FormatInfo{
			ID:             f.ID,
			Name:           f.Name,
			Extensions:     f.Extensions,
			CanRead:        f.CanRead,
			CanWrite:       f.CanWrite,
			SupportsSeries: f.SupportsSeries,
		})
	}
	writeJSON(w, types.FormatsResponse{
		Formats: out,
		Filter:  m.Filter("%s (%s)", "*.%s", " ", ";;"),
	})
}

// handleGuess runs format detection for ?path=.
func handleGuess(w http.ResponseWriter, r *http.Request, sess *session) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSONError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	cand, err := sess.model.GuessFileFormat(path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, types.GuessResponse{
		FormatID:   cand.Format.ID,
		FormatName: cand.Format.Name,
		Source:     string(cand.Source),
		OK:         cand.OK,
		FileExists: cand.FileExists,
	})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request, sess *session) {
	var req types.LoadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m := sess.model
	if req.Format != "" {
		f, ok := lookupFormat(m, req.Format)
		if !ok {
			writeJSONError(w, http.StatusUnprocessableEntity, "unknown format: "+req.Format)
			return
		}
		m.SetSelectedFormat(f)
	}
	err := m.LoadImage(r.Context(), req.Path)
	countLoad(m.SelectedFormat().ID, err)
	if err != nil {
		writeError(w, err)
		return
	}
	if sess.target == "main" {
		s.setReferenceImage(m.LoadedImage())
	}
	writeJSON(w, sess.info())
}

func handleSave(w http.ResponseWriter, r *http.Request, sess *session) {
	var req types.SaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m := sess.model
	if req.Format != "" {
		f, ok := lookupFormat(m, req.Format)
		if !ok {
			writeJSONError(w, http.StatusUnprocessableEntity, "unknown format: "+req.Format)
			return
		}
		m.SetSelectedFormat(f)
	}
	err := m.SaveImage(r.Context(), req.Path)
	countSave(m.SelectedFormat().ID, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, sess.info())
}

func handleSummary(w http.ResponseWriter, r *http.Request, sess *session) {
	var rows []types.SummaryItemRow
	for _, item := range wizard.SummaryItems() {
		rows = append(rows, types.SummaryItemRow{
			Key:   string(item),
			Value: sess.model.SummaryItem(item),
		})
	}
	writeJSON(w, types.SummaryResponse{Items: rows})
}

func handleDicomScan(w http.ResponseWriter, r *http.Request, sess *session) {
	var req types.DicomScanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Dir == "" {
		writeJSONError(w, http.StatusBadRequest, "dir is required")
		return
	}
	if err := sess.model.ProcessDicomDirectory(r.Context(), req.Dir); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, dicomContents(sess))
}

func handleDicomContents(w http.ResponseWriter, r *http.Request, sess *session) {
	writeJSON(w, dicomContents(sess))
}

func dicomContents(sess *session) types.DicomContentsResponse {
	descs := sess.model.DicomContents()
	series := make([]types.SeriesInfo, 0, len(descs))
	for _, d := range descs {
		series = append(series, types.SeriesInfo{
			Index:       d.Index,
			UID:         d.UID,
			Description: d.Description,
			FileCount:   len(d.Files),
		})
	}
	return types.DicomContentsResponse{Series: series}
}

func handleDicomLoad(w http.ResponseWriter, r *http.Request, sess *session) {
	var req types.DicomLoadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := sess.model.LoadDicomSeries(r.Context(), req.Path, req.Index)
	countLoad("dicom", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, sess.info())
}

func handleRegistrationStart(w http.ResponseWriter, r *http.Request, sess *session) {
	var req types.RegistrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m := sess.model
	if req.Mode != "" {
		mode := registration.Mode(req.Mode)
		if mode.Label() == "" {
			writeJSONError(w, http.StatusUnprocessableEntity, "unknown registration mode: "+req.Mode)
			return
		}
		m.SetRegistrationMode(mode)
	}
	if req.Metric != "" {
		metric := registration.Metric(req.Metric)
		if metric.Label() == "" {
			writeJSONError(w, http.StatusUnprocessableEntity, "unknown registration metric: "+req.Metric)
			return
		}
		m.SetRegistrationMetric(metric)
	}
	if req.Init != "" {
		seed := registration.Init(req.Init)
		if seed.Label() == "" {
			writeJSONError(w, http.StatusUnprocessableEntity, "unknown registration init: "+req.Init)
			return
		}
		m.SetRegistrationInit(seed)
	}
	if err := m.PerformRegistration(); err != nil {
		writeError(w, err)
		return
	}
	registrationRunsTotal.WithLabelValues(string(m.RegistrationInit())).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(registrationStatus(m, false))
}

// handleRegistrationStatus reports the worker snapshot. It also drains the
// session's pending notifications: the poll is the consumer acting on them.
func handleRegistrationStatus(w http.ResponseWriter, r *http.Request, sess *session) {
	m := sess.model
	pending := m.Bucket().Has(events.KindRegistration, m)
	m.Bucket().Clear()
	writeJSON(w, registrationStatus(m, pending))
}

func handleRegistrationCancel(w http.ResponseWriter, r *http.Request, sess *session) {
	sess.model.CancelRegistration()
	writeJSON(w, registrationStatus(sess.model, false))
}

func handleRegistrationApply(w http.ResponseWriter, r *http.Request, sess *session) {
	if err := sess.model.UpdateImageTransformFromRegistration(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, sess.info())
}

// lookupFormat resolves a format by id first, then by display name.
func lookupFormat(m *wizard.Model, key string) (imageio.Format, bool) {
	if f, ok := m.FormatByID(key); ok {
		return f, true
	}
	return m.FormatByName(key)
}

func registrationStatus(m *wizard.Model, pending bool) types.RegistrationStatus {
	snap := m.RegistrationSnapshot()
	out := types.RegistrationStatus{
		Status:      string(snap.Status),
		Iteration:   snap.Iteration,
		Translation: snap.Transform.Translation(),
		Pending:     pending,
		Error:       snap.Err,
	}
	if !math.IsNaN(snap.Objective) {
		obj := snap.Objective
		out.Objective = &obj
	}
	return out
}
