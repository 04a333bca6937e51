package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"personality-quiz-service/internal/app"
	"personality-quiz-service/internal/domain"
)

const defaultMaxUpload = 25 << 20 // whisper's own upload cap

// allowedAudioTypes mirrors the content types the recording widget produces.
var allowedAudioTypes = map[string]string{
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/x-mpeg": ".mp3",
	"audio/x-mp3":  ".mp3",
	"audio/wav":    ".wav",
	"audio/x-wav":  ".wav",
	"audio/webm":   ".webm",
	"audio/ogg":    ".ogg",
}

// Handler exposes the quiz lifecycle over REST.
type Handler struct {
	service   *app.QuizService
	uploadDir string
	maxUpload int64
}

func NewHandler(service *app.QuizService, uploadDir string) *Handler {
	return &Handler{
		service:   service,
		uploadDir: uploadDir,
		maxUpload: defaultMaxUpload,
	}
}

// Register wires the REST routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/session", h.startSession)
	mux.HandleFunc("GET /api/session/{userId}/next", h.nextQuestion)
	mux.HandleFunc("POST /api/session/{userId}/answer", h.submitAnswer)
}

type startRequest struct {
	UserID string `json:"userId"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrMissingUserID)
		return
	}

	step, err := h.service.Start(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

func (h *Handler) nextQuestion(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.NextQuestion(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Completed {
		writeJSON(w, http.StatusOK, struct {
			Completed bool `json:"completed"`
			*domain.Completion
		}{true, result.Completion})
		return
	}
	writeJSON(w, http.StatusOK, result.Next)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	audioPath, err := h.saveUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}
	// The temp file is removed on every path, success or failure.
	defer func() {
		if err := os.Remove(audioPath); err != nil {
			log.Printf("failed to remove upload %s: %v", audioPath, err)
		}
	}()

	result, err := h.service.SubmitAnswer(r.Context(), userID, audioPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// saveUpload stores the multipart "file" part in the upload dir and returns
// its path. The caller owns removal.
func (h *Handler) saveUpload(r *http.Request) (string, error) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return "", domain.ErrMissingAudio
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", domain.ErrMissingAudio
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedAudioTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		// fall back to the filename extension for clients that omit the type
		ext = strings.ToLower(filepath.Ext(header.Filename))
		if !allowedExt(ext) {
			return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedAudio, contentType)
		}
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	tmp, err := os.CreateTemp(h.uploadDir, "answer_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	return tmp.Name(), nil
}

func allowedExt(ext string) bool {
	for _, allowed := range allowedAudioTypes {
		if ext == allowed {
			return true
		}
	}
	return false
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps domain errors 1:1 to machine-readable codes.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, domain.ErrMissingUserID):
		status, code = http.StatusBadRequest, "missing_user_id"
	case errors.Is(err, domain.ErrDuplicateSession):
		status, code = http.StatusConflict, "duplicate_session"
	case errors.Is(err, domain.ErrSessionNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrNoQuestions), errors.Is(err, domain.ErrCatalogNotFound):
		status, code = http.StatusInternalServerError, "no_questions_available"
	case errors.Is(err, domain.ErrMissingAudio):
		status, code = http.StatusBadRequest, "missing_file"
	case errors.Is(err, domain.ErrUnsupportedAudio):
		status, code = http.StatusBadRequest, "unsupported_audio"
	case errors.Is(err, domain.ErrTranscription):
		status, code = http.StatusBadGateway, "transcription_failed"
	case errors.Is(err, domain.ErrInvalidScore):
		status, code = http.StatusBadGateway, "invalid_score"
	case errors.Is(err, domain.ErrMissingFacet):
		status, code = http.StatusInternalServerError, "invalid_catalog"
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
