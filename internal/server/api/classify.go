package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/vocalize/internal/features"
	"github.com/ayusman/vocalize/internal/gesture"
	"github.com/ayusman/vocalize/internal/landmark"
)

// ClassifyHandler classifies a single landmark frame without touching the
// stability state of the running pipeline.
type ClassifyHandler struct {
	classifier *gesture.Classifier
}

// NewClassifyHandler creates a ClassifyHandler.
func NewClassifyHandler(c *gesture.Classifier) *ClassifyHandler {
	return &ClassifyHandler{classifier: c}
}

type classifyResponse struct {
	Label        string       `json:"label"`
	TableVersion string       `json:"table_version"`
	Features     features.Set `json:"features"`
}

// ServeHTTP handles POST /api/classify.
func (h *ClassifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var hand landmark.HandLandmarks
	if err := json.NewDecoder(r.Body).Decode(&hand); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	f, err := features.Extract(&hand)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	label := h.classifier.Classify(f)
	writeJSON(w, http.StatusOK, classifyResponse{
		Label:        label.String(),
		TableVersion: h.classifier.Table().Version,
		Features:     f,
	})
}
