package grading

import (
	"context"
	"fmt"
	"log"
)

// SectionScore aggregates one section's questions. Raw is nil when the
// section is graded by hand only (writing, speaking): "awaiting manual
// grading" must stay distinguishable from a scored zero.
type SectionScore struct {
	Raw         *float64
	Max         float64
	Correct     int // auto-scored questions answered correctly
	GradeErrors int // questions that could not be graded
}

// ScoreSection grades every question of one section against the saved
// answers. Questions routed to manual review contribute to Max only.
// A failure grading one question costs that question its points, never
// the rest of the section.
func ScoreSection(ctx context.Context, g Grader, qs []Q, answers map[string]interface{}) SectionScore {
	var sc SectionScore
	raw := 0.0
	for _, q := range qs {
		sc.Max += q.Points
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
			sc.Correct++
		}
	}
	sc.Raw = &raw
	return sc
}

// ScoreManualSection accumulates Max for a section whose raw score will be
// assigned later by an examiner. Raw stays nil.
func ScoreManualSection(qs []Q) SectionScore {
	var sc SectionScore
	for _, q := range qs {
		sc.Max += q.Points
	}
	return sc
}

func gradeOne(ctx context.Context, g Grader, q Q, answer interface{}) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{MaxPoints: q.Points}
			err = &gradeError{questionID: q.ID, cause: r}
		}
	}()
	return g.Grade(ctx, q, answer), nil
}

type gradeError struct {
	questionID string
	cause      interface{}
}

func (e *gradeError) Error() string {
	return fmt.Sprintf("question %s: recovered panic: %v", e.questionID, e.cause)
}
