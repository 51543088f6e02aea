package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/vocalize/internal/gesture"
	"github.com/ayusman/vocalize/internal/landmark"
	"github.com/ayusman/vocalize/internal/store"
)

// SampleHandler handles labelled samples and their evaluation against the
// rule table.
type SampleHandler struct {
	store      *store.Store
	classifier *gesture.Classifier
}

// NewSampleHandler creates a SampleHandler.
func NewSampleHandler(s *store.Store, c *gesture.Classifier) *SampleHandler {
	return &SampleHandler{store: s, classifier: c}
}

// ServeHTTP routes /api/samples, /api/samples/evaluate and /api/samples/{id}.
func (h *SampleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/samples")
	path = strings.TrimPrefix(path, "/")

	switch {
	case path == "":
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case path == "evaluate":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.evaluate(w, r)
	default:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, path)
		case http.MethodDelete:
			h.delete(w, r, path)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

type createSampleRequest struct {
	Label      string             `json:"label"`
	Handedness string             `json:"handedness"`
	Points     []landmark.Point3D `json:"points"`
}

type sampleResponse struct {
	ID         string             `json:"id"`
	Label      string             `json:"label"`
	Handedness string             `json:"handedness,omitempty"`
	Points     []landmark.Point3D `json:"points"`
	CreatedAt  string             `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

type mismatchResponse struct {
	SampleID string `json:"sample_id"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
}

type evaluateResponse struct {
	TableVersion string                    `json:"table_version"`
	Total        int                       `json:"total"`
	Correct      int                       `json:"correct"`
	Invalid      int                       `json:"invalid"`
	Accuracy     float64                   `json:"accuracy"`
	Confusion    map[string]map[string]int `json:"confusion"`
	Mismatches   []mismatchResponse        `json:"mismatches"`
}

func toSampleResponse(s *store.Sample) sampleResponse {
	return sampleResponse{
		ID:         s.ID,
		Label:      s.Label,
		Handedness: s.Handedness,
		Points:     s.Points,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
	}
}

// list handles GET /api/samples, optionally filtered with ?label=.
func (h *SampleHandler) list(w http.ResponseWriter, r *http.Request) {
	samples, err := h.store.Samples().List(r.URL.Query().Get("label"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{Samples: make([]sampleResponse, 0, len(samples))}
	for _, s := range samples {
		response.Samples = append(response.Samples, toSampleResponse(s))
	}
	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/samples. Malformed frames are accepted so that
// evaluation can report them as invalid.
func (h *SampleHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if !validLetter(req.Label, false) {
		writeError(w, http.StatusBadRequest, "label must be a letter A-Z")
		return
	}
	if len(req.Points) == 0 {
		writeError(w, http.StatusBadRequest, "points are required")
		return
	}

	sample := &store.Sample{
		Label:      req.Label,
		Handedness: req.Handedness,
		Points:     req.Points,
	}
	if err := h.store.Samples().Create(sample); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create sample")
		return
	}

	writeJSON(w, http.StatusCreated, toSampleResponse(sample))
}

// get handles GET /api/samples/{id}.
func (h *SampleHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sample, err := h.store.Samples().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sample not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get sample")
		return
	}
	writeJSON(w, http.StatusOK, toSampleResponse(sample))
}

// delete handles DELETE /api/samples/{id}.
func (h *SampleHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Samples().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sample not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete sample")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// evaluate handles POST /api/samples/evaluate, optionally for one ?label=.
func (h *SampleHandler) evaluate(w http.ResponseWriter, r *http.Request) {
	samples, err := h.store.Samples().List(r.URL.Query().Get("label"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	report := gesture.Evaluate(h.classifier, ToEvalSamples(samples))
	writeJSON(w, http.StatusOK, toEvaluateResponse(report))
}

// ToEvalSamples converts stored samples for gesture.Evaluate.
func ToEvalSamples(samples []*store.Sample) []gesture.Sample {
	out := make([]gesture.Sample, 0, len(samples))
	for _, s := range samples {
		out = append(out, gesture.Sample{
			ID:       s.ID,
			Expected: gesture.Label(s.Label),
			Hand:     s.Hand(),
		})
	}
	return out
}

func toEvaluateResponse(r gesture.Report) evaluateResponse {
	resp := evaluateResponse{
		TableVersion: r.TableVersion,
		Total:        r.Total,
		Correct:      r.Correct,
		Invalid:      r.Invalid,
		Accuracy:     r.Accuracy(),
		Confusion:    make(map[string]map[string]int, len(r.Confusion)),
		Mismatches:   make([]mismatchResponse, 0, len(r.Mismatches)),
	}
	for expected, row := range r.Confusion {
		out := make(map[string]int, len(row))
		for got, n := range row {
			out[got.String()] = n
		}
		resp.Confusion[expected.String()] = out
	}
	for _, m := range r.Mismatches {
		resp.Mismatches = append(resp.Mismatches, mismatchResponse{
			SampleID: m.SampleID,
			Expected: m.Expected.String(),
			Got:      m.Got.String(),
		})
	}
	return resp
}
