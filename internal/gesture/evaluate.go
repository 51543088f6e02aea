package gesture

import (
	"sort"

	"github.com/ayusman/vocalize/internal/features"
	"github.com/ayusman/vocalize/internal/landmark"
)

// Sample is a landmark frame labelled with the letter it shows. Expected may
// be None for frames that should match nothing.
type Sample struct {
	ID       string
	Expected Label
	Hand     landmark.HandLandmarks
}

// Mismatch records a sample the classifier got wrong.
type Mismatch struct {
	SampleID string `json:"sample_id"`
	Expected Label  `json:"expected"`
	Got      Label  `json:"got"`
}

// Report summarizes a classifier run over labelled samples.
type Report struct {
	TableVersion string                  `json:"table_version"`
	Total        int                     `json:"total"`
	Correct      int                     `json:"correct"`
	Invalid      int                     `json:"invalid"`
	Confusion    map[Label]map[Label]int `json:"confusion"`
	Mismatches   []Mismatch              `json:"mismatches"`
}

// Accuracy returns the share of valid samples classified correctly.
func (r Report) Accuracy() float64 {
	valid := r.Total - r.Invalid
	if valid == 0 {
		return 0
	}
	return float64(r.Correct) / float64(valid)
}

// Evaluate runs each sample through feature extraction and classification.
// Invalid frames are counted and skipped.
func Evaluate(c *Classifier, samples []Sample) Report {
	report := Report{
		TableVersion: c.Table().Version,
		Confusion:    make(map[Label]map[Label]int),
		Mismatches:   make([]Mismatch, 0),
	}

	for i := range samples {
		s := &samples[i]
		report.Total++

		f, err := features.Extract(&s.Hand)
		if err != nil {
			report.Invalid++
			continue
		}

		got := c.Classify(f)
		row, ok := report.Confusion[s.Expected]
		if !ok {
			row = make(map[Label]int)
			report.Confusion[s.Expected] = row
		}
		row[got]++

		if got == s.Expected {
			report.Correct++
		} else {
			report.Mismatches = append(report.Mismatches, Mismatch{
				SampleID: s.ID,
				Expected: s.Expected,
				Got:      got,
			})
		}
	}

	sort.SliceStable(report.Mismatches, func(i, j int) bool {
		return report.Mismatches[i].Expected < report.Mismatches[j].Expected
	})

	return report
}
