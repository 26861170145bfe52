package grading_test

import (
	"context"
	"testing"

	"github.com/lingoprep/lingoprep-lms/internal/grading"
)

func TestScoreSection(t *testing.T) {
	qs := []grading.Q{
		{ID: "q1", Type: "true_false", Order: 0, Points: 1, Key: grading.Key{Value: boolPtr(false)}},
		{ID: "q2", Type: "gap", Order: 1, Points: 2, Key: grading.Key{Answers: []string{"harbour"}}},
		{ID: "q3", Type: "mcq_single", Order: 2, Points: 1, Key: grading.Key{Index: intPtr(1)}},
		{ID: "q4", Type: "short_text", Order: 3, Points: 4},
	}
	answers := map[string]interface{}{
		"q1": false,        // correct
		"q2": " Harbour ",  // correct after normalization
		"q3": float64(0),   // wrong
		"q4": "free text",  // manual, max only
	}
	sc := grading.ScoreSection(context.Background(), grading.NewDefaultGrader(), qs, answers)
	if sc.Raw == nil {
		t.Fatal("auto-scored section must have a raw score")
	}
	if *sc.Raw != 3 {
		t.Fatalf("raw = %v, want 3", *sc.Raw)
	}
	if sc.Max != 8 {
		t.Fatalf("max = %v, want 8", sc.Max)
	}
	if sc.Correct != 2 {
		t.Fatalf("correct = %d, want 2", sc.Correct)
	}
	if *sc.Raw > sc.Max {
		t.Fatal("raw must not exceed max")
	}
}

func TestScoreSectionUnanswered(t *testing.T) {
	qs := []grading.Q{
		{ID: "q1", Type: "true_false", Points: 1, Key: grading.Key{Value: boolPtr(true)}},
	}
	sc := grading.ScoreSection(context.Background(), grading.NewDefaultGrader(), qs, map[string]interface{}{})
	if *sc.Raw != 0 || sc.Max != 1 {
		t.Fatalf("unanswered section = %v/%v, want 0/1", *sc.Raw, sc.Max)
	}
}

func TestScoreManualSection(t *testing.T) {
	qs := []grading.Q{
		{ID: "w1", Type: "essay", Points: 10},
		{ID: "w2", Type: "essay", Points: 20},
	}
	sc := grading.ScoreManualSection(qs)
	if sc.Raw != nil {
		t.Fatalf("manual section raw must be nil, got %v", *sc.Raw)
	}
	if sc.Max != 30 {
		t.Fatalf("max = %v, want 30", sc.Max)
	}
}

// panicGrader blows up on one question id to exercise per-question isolation.
type panicGrader struct {
	inner  grading.Grader
	target string
}

func (p panicGrader) Grade(ctx context.Context, q grading.Q, answer interface{}) grading.Result {
	if q.ID == p.target {
		panic("corrupt answer key")
	}
	return p.inner.Grade(ctx, q, answer)
}

func TestScoreSectionPanicIsolation(t *testing.T) {
	qs := []grading.Q{
		{ID: "q1", Type: "true_false", Points: 1, Key: grading.Key{Value: boolPtr(true)}},
		{ID: "q2", Type: "true_false", Points: 1, Key: grading.Key{Value: boolPtr(true)}},
		{ID: "q3", Type: "true_false", Points: 1, Key: grading.Key{Value: boolPtr(true)}},
	}
	answers := map[string]interface{}{"q1": true, "q2": true, "q3": true}
	g := panicGrader{inner: grading.NewDefaultGrader(), target: "q2"}

	sc := grading.ScoreSection(context.Background(), g, qs, answers)
	if *sc.Raw != 2 {
		t.Fatalf("raw = %v, want 2 (failed question scores zero)", *sc.Raw)
	}
	if sc.Max != 3 {
		t.Fatalf("max = %v, want 3 (failed question keeps its max)", sc.Max)
	}
	if sc.GradeErrors != 1 {
		t.Fatalf("grade errors = %d, want 1", sc.GradeErrors)
	}
}
