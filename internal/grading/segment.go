package grading

import (
	"context"
	"log"
)

// Standardized exams carry a fixed internal substructure: an academic
// reading section always splits into passages, listening into parts, at
// known cumulative question counts. Boundaries are inclusive-upper
// cumulative counts, e.g. {13, 26, 40} means questions 0-12 belong to
// passage 1, 13-25 to passage 2, 26-39 to passage 3.

// UnitScore is one structural unit's slice of a section score.
type UnitScore struct {
	Unit int     `json:"unit"` // 1-based passage/part number
	Raw  float64 `json:"raw"`
	Max  float64 `json:"max"`
}

type segmentProfile map[string][]int // section type -> cumulative boundaries

var segmentProfiles = map[string]segmentProfile{
	"ielts": {
		"reading":   {13, 26, 40},
		"listening": {10, 20, 30, 40},
	},
}

// RegisterSegments binds a standardized exam type to its per-section
// boundary tables. Typically called from an init() when a new exam
// standard is added.
func RegisterSegments(examType string, bounds map[string][]int) {
	if examType == "" || len(bounds) == 0 {
		return
	}
	segmentProfiles[examType] = bounds
}

// Boundaries returns the cumulative unit boundaries for a standardized
// exam's section, or false when that section has no fixed substructure.
func Boundaries(examType, sectionType string) ([]int, bool) {
	p, ok := segmentProfiles[examType]
	if !ok {
		return nil, false
	}
	b, ok := p[sectionType]
	return b, ok
}

// UnitFor maps a question's 0-based order to its 1-based structural unit.
// An order past the last boundary lands in the last unit: upstream content
// that overruns its question count must not abort grading.
func UnitFor(bounds []int, order int) int {
	for i, upper := range bounds {
		if order < upper {
			return i + 1
		}
	}
	return len(bounds)
}

// ScoreSectionSegmented grades a section in one pass, producing both the
// flat section score and the per-unit breakdown. Grading each question
// exactly once keeps the unit raws summing to the section raw.
func ScoreSectionSegmented(ctx context.Context, g Grader, bounds []int, qs []Q, answers map[string]interface{}) (SectionScore, []UnitScore) {
	var sc SectionScore
	raw := 0.0
	units := make([]UnitScore, len(bounds))
	for i := range units {
		units[i].Unit = i + 1
	}
	for _, q := range qs {
		u := UnitFor(bounds, q.Order) - 1
		sc.Max += q.Points
		units[u].Max += q.Points
		res, err := gradeOne(ctx, g, q, answers[q.ID])
		if err != nil {
			log.Printf("grading: question %s: %v", q.ID, err)
			sc.GradeErrors++
			continue
		}
		if res.NeedsManual {
			continue
		}
		if res.Correct {
			raw += res.AutoPoints
			units[u].Raw += res.AutoPoints
			sc.Correct++
		}
	}
	sc.Raw = &raw
	return sc, units
}
