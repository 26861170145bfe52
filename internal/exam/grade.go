package exam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lingoprep/lingoprep-lms/internal/bands"
	"github.com/lingoprep/lingoprep-lms/internal/grading"
)

var (
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	ErrNotOwner         = errors.New("attempt belongs to another user")
)

// ErrNotGradable marks a structurally broken exam that must not produce a
// misleading partial score.
type ErrNotGradable struct{ Reason string }

func (e ErrNotGradable) Error() string { return "cannot grade: " + e.Reason }

// BandLookup resolves (exam type, section type, raw score) to a band.
// *bands.Table satisfies it; the gateway wraps it so admin table updates
// swap in a fresh snapshot without touching in-flight grading.
type BandLookup interface {
	Lookup(examType, sectionType string, raw float64) (band float64, ok bool)
}

// Engine grades submitted attempts. It performs no I/O: the exam tree and
// band table are loaded by the caller before scoring starts, and the
// returned ResultSet is the caller's to persist atomically.
type Engine struct {
	Grader grading.Grader
	Bands  BandLookup
}

func NewEngine(table BandLookup) Engine {
	return Engine{Grader: grading.NewDefaultGrader(), Bands: table}
}

// GradeAttempt scores every section of an attempt against the exam's
// canonical tree and returns one complete, internally consistent result
// set. It refuses to grade an attempt that is already submitted.
func (e Engine) GradeAttempt(ctx context.Context, ex Exam, a Attempt, now time.Time) (ResultSet, error) {
	if a.Status == StatusSubmitted {
		return ResultSet{}, ErrAlreadySubmitted
	}
	if ex.ID == "" {
		return ResultSet{}, ErrNotGradable{Reason: "exam not found"}
	}
	if len(ex.Sections) == 0 {
		return ResultSet{}, ErrNotGradable{Reason: fmt.Sprintf("exam %s has no sections", ex.ID)}
	}
	total := 0
	for _, s := range ex.Sections {
		total += len(s.Questions)
	}
	if total == 0 {
		return ResultSet{}, ErrNotGradable{Reason: fmt.Sprintf("exam %s has no questions", ex.ID)}
	}

	answers := NormalizeAnswers(a.Answers)
	rs := ResultSet{
		AttemptID:   a.ID,
		Sections:    make([]SectionResult, 0, len(ex.Sections)),
		SubmittedAt: now.Unix(),
	}

	autoRaw, autoMax := 0.0, 0.0
	var sectionBands []float64

	for _, sec := range ex.Sections {
		sr := e.gradeSection(ctx, ex.Type, sec, answers.ForSection(sec))
		if sr.Raw != nil {
			autoRaw += *sr.Raw
			autoMax += sr.Max
			if e.Bands != nil {
				if band, ok := e.Bands.Lookup(ex.Type, sec.Type, *sr.Raw); ok {
					sr.Band = &band
				}
			}
		}
		if sr.Band != nil {
			sectionBands = append(sectionBands, *sr.Band)
		}
		rs.Sections = append(rs.Sections, sr)
	}

	if autoMax > 0 {
		pct := autoRaw / autoMax * 100
		rs.OverallPercent = &pct
	}
	if overall, ok := bands.Overall(sectionBands); ok {
		rs.OverallBand = &overall
	}
	return rs, nil
}

func (e Engine) gradeSection(ctx context.Context, examType string, sec Section, answers map[string]interface{}) SectionResult {
	sr := SectionResult{
		SectionID:   sec.ID,
		SectionType: sec.Type,
		Status:      ResultCompleted,
	}

	if manualOnly(sec.Type) {
		sc := grading.ScoreManualSection(sec.gradingView())
		sr.Max = sc.Max
		sr.Status = ResultPendingManual
		return sr
	}

	if bounds, ok := grading.Boundaries(examType, sec.Type); ok {
		sc, units := grading.ScoreSectionSegmented(ctx, e.Grader, bounds, sec.gradingView(), answers)
		sr.Raw, sr.Max, sr.GradeErrors = sc.Raw, sc.Max, sc.GradeErrors
		sr.Rubric = units
		return sr
	}

	sc := grading.ScoreSection(ctx, e.Grader, sec.gradingView(), answers)
	sr.Raw, sr.Max, sr.GradeErrors = sc.Raw, sc.Max, sc.GradeErrors
	return sr
}
