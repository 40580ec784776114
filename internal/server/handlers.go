package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/orato-voice/orato/internal/app"
	"github.com/orato-voice/orato/internal/capture"
	"github.com/orato-voice/orato/internal/journey"
	"github.com/orato-voice/orato/internal/report"
	"github.com/orato-voice/orato/internal/session"
	"github.com/orato-voice/orato/internal/store"
	"github.com/orato-voice/orato/internal/transcript"
	"github.com/orato-voice/orato/pkg/audio"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain sentinels to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, journey.ErrChallengeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, capture.ErrInvalidState),
		errors.Is(err, journey.ErrInvalidTransition),
		errors.Is(err, app.ErrQuestionAnswered):
		status = http.StatusConflict
	case errors.Is(err, app.ErrGenerationUnavailable):
		status = http.StatusTooManyRequests
	case errors.Is(err, capture.ErrRecordingTooShort),
		errors.Is(err, transcript.ErrEmptyAudio),
		errors.Is(err, app.ErrNoReport):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, report.ErrMalformedResponse):
		status = http.StatusBadGateway
	case errors.Is(err, audio.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, audio.ErrDeviceUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody parses a JSON request body into v. An empty body leaves v at
// its zero value.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// --- Recording ---

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.StartRecording(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Status())
}

type stopRequest struct {
	Title     string `json:"title"`
	Mode      string `json:"mode"`
	PersonaID string `json:"personaId"`
	Benchmark string `json:"benchmark"`
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := s.manager.FinishSession(r.Context(), app.FinishRequest{
		Title:     req.Title,
		Mode:      req.Mode,
		PersonaID: req.PersonaID,
		Benchmark: req.Benchmark,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleCancelRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.CancelRecording(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Status())
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Status())
}

// --- Sessions ---

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.manager.Sessions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// Audio blobs stay out of list responses.
	for i := range sessions {
		sessions[i].Audio = nil
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &req); err != nil || req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	if err := s.manager.RenameSession(r.Context(), r.PathValue("id"), req.Title); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFavoriteSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Favorite bool `json:"favorite"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.manager.SetFavorite(r.Context(), r.PathValue("id"), req.Favorite); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinishPractice(w http.ResponseWriter, r *http.Request) {
	attempt, err := s.manager.FinishPractice(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

// --- Challenges ---

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := s.manager.Challenges(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if challenges == nil {
		challenges = []journey.Challenge{}
	}
	writeJSON(w, http.StatusOK, challenges)
}

func (s *Server) handleGenerateChallenge(w http.ResponseWriter, r *http.Request) {
	ch, err := s.manager.GenerateChallenge(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) handleAcceptChallenge(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.AcceptChallenge(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeclineChallenge(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeclineChallenge(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Drills ---

func (s *Server) handleListDrills(w http.ResponseWriter, r *http.Request) {
	drills, err := s.manager.Drills(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drills)
}

func (s *Server) handleGenerateDrills(w http.ResponseWriter, r *http.Request) {
	drills, err := s.manager.GenerateDrills(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, drills)
}

func (s *Server) handleCompleteDrill(w http.ResponseWriter, r *http.Request) {
	d, err := s.manager.CompleteDrill(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// --- Question rounds ---

func (s *Server) handleStartQA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PersonaID string `json:"personaId"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	qa, err := s.manager.StartQA(r.Context(), r.PathValue("id"), req.PersonaID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, qa)
}

func (s *Server) handleAnswerQA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := decodeBody(r, &req); err != nil || req.Answer == "" {
		http.Error(w, "answer is required", http.StatusBadRequest)
		return
	}
	qa, err := s.manager.AnswerQA(r.Context(), r.PathValue("id"), r.PathValue("qaID"), req.Answer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qa)
}

// --- Personas ---

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := s.manager.Personas(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, personas)
}

func (s *Server) handleSavePersona(w http.ResponseWriter, r *http.Request) {
	var p session.Persona
	if err := decodeBody(r, &p); err != nil || p.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	saved, err := s.manager.SavePersona(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeletePersona(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
