package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/vocalize/internal/gesture"
)

// Recognizer is the switchable recognition loop.
type Recognizer interface {
	IsEnabled() bool
	SetEnabled(enabled bool) error
	LastLetter() gesture.Label
}

// RecognitionHandler reports and toggles recognition.
type RecognitionHandler struct {
	recognizer Recognizer
}

// NewRecognitionHandler creates a RecognitionHandler.
func NewRecognitionHandler(r Recognizer) *RecognitionHandler {
	return &RecognitionHandler{recognizer: r}
}

type recognitionState struct {
	Enabled    bool   `json:"enabled"`
	LastLetter string `json:"last_letter,omitempty"`
}

type setRecognitionRequest struct {
	Enabled *bool `json:"enabled"`
}

// ServeHTTP handles GET and PUT /api/recognition.
func (h *RecognitionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req setRecognitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		if err := h.recognizer.SetEnabled(*req.Enabled); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to switch recognition")
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, recognitionState{
		Enabled:    h.recognizer.IsEnabled(),
		LastLetter: string(h.recognizer.LastLetter()),
	})
}
