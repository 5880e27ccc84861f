package httpapi

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"imaged/internal/dicom"
	"imaged/internal/imageio"
	"imaged/internal/registration"
	"imaged/internal/wizard"
	"imaged/pkg/types"
)

// Options carries the shared dependencies every session is built from.
type Options struct {
	Catalog      *imageio.Catalog
	IO           imageio.GuidedIO
	Enumerator   dicom.Enumerator
	Materializer dicom.Materializer
	HintTTL      time.Duration
	Registration registration.Config
	Log          zerolog.Logger
}

// session pairs one wizard model with its identifier. The model is not safe
// for concurrent callers, so every handler takes the session mutex first.
type session struct {
	id      string
	created time.Time
	target  string

	mu    sync.Mutex
	model *wizard.Model
}

// Server owns the session registry and the process-wide reference image.
// Sessions share one hint store so a format choice made in one dialog is
// remembered by the next.
type Server struct {
	opts  Options
	hints *imageio.HintStore

	mu        sync.Mutex
	sessions  map[string]*session
	reference *imageio.Image
}

// NewServer builds the API server around the given dependencies.
func NewServer(opts Options) *Server {
	return &Server{
		opts:     opts,
		hints:    imageio.NewHintStore(opts.HintTTL),
		sessions: make(map[string]*session),
	}
}

// Ready reports whether the server can take traffic.
func (s *Server) Ready() bool {
	return s.opts.Catalog != nil && s.opts.Catalog.Len() > 0 && s.opts.IO != nil
}

// ReferenceImage returns the last successfully loaded main image, if any.
func (s *Server) ReferenceImage() *imageio.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reference
}

func (s *Server) setReferenceImage(img *imageio.Image) {
	s.mu.Lock()
	s.reference = img
	s.mu.Unlock()
}

// createSession builds a model, applies the requested delegate and registers
// the session.
func (s *Server) createSession(req types.CreateSessionRequest) (*session, error) {
	model := wizard.NewModel(wizard.Deps{
		Catalog:      s.opts.Catalog,
		IO:           s.opts.IO,
		Hints:        s.hints,
		Enumerator:   s.opts.Enumerator,
		Materializer: s.opts.Materializer,
		Registration: s.opts.Registration,
		Log:          s.opts.Log,
	})

	sess := &session{
		id:      uuid.NewString(),
		created: time.Now(),
		model:   model,
	}

	switch req.Mode {
	case "load":
		switch req.Target {
		case "", "main":
			sess.target = "main"
			if err := model.InitializeForLoad(wizard.LoadMainDelegate{}); err != nil {
				return nil, err
			}
		case "overlay":
			sess.target = "overlay"
			del := wizard.LoadOverlayDelegate{
				AllowGeometryMismatch: req.AllowGeometryMismatch,
				Sticky:                req.StickyOverlay,
				ColorMap:              req.ColorMap,
			}
			if err := model.InitializeForLoad(del); err != nil {
				return nil, err
			}
			model.SetReferenceImage(s.ReferenceImage())
		default:
			return nil, wizard.ErrValidation("target must be main or overlay")
		}
	case "save":
		del := &wizard.DefaultSaveDelegate{DefaultFormat: req.DefaultFormat}
		if err := model.InitializeForSave(del, req.DisplayName); err != nil {
			return nil, err
		}
		// A save session writes the image loaded by the most recent
		// successful main load.
		model.SetImage(s.ReferenceImage())
	default:
		return nil, wizard.ErrValidation("mode must be load or save")
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	sessionsActive.Inc()
	return sess, nil
}

func (s *Server) getSession(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// closeSession finalizes the model and removes the session. Finalize is
// idempotent, so a racing duplicate delete is harmless.
func (s *Server) closeSession(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	sess.mu.Lock()
	sess.model.CancelRegistration()
	sess.model.Finalize()
	sess.mu.Unlock()
	sessionsActive.Dec()
	return true
}

// info projects the session for API responses. Caller holds sess.mu.
func (sess *session) info() types.SessionInfo {
	m := sess.model
	warnings := make([]types.Warning, 0, len(m.Warnings()))
	for _, w := range m.Warnings() {
		warnings = append(warnings, types.Warning{Code: w.Code, Message: w.Message})
	}
	return types.SessionInfo{
		ID:              sess.id,
		Mode:            m.Mode().String(),
		DisplayName:     m.DisplayName(),
		ImageLoaded:     m.IsImageLoaded(),
		Warnings:        warnings,
		Overlay:         m.IsOverlay(),
		UseRegistration: m.UseRegistration(),
	}
}
