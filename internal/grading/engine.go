package grading

import (
	"context"
	"strings"
)

// Key is the canonical correct-answer descriptor for a question. Exactly one
// field group is populated, matching the question type.
type Key struct {
	Value   *bool    `json:"value,omitempty"`   // true_false
	Index   *int     `json:"index,omitempty"`   // mcq_single, select
	Indices []int    `json:"indices,omitempty"` // mcq_multi
	Answers []string `json:"answers,omitempty"` // gap: any one accepted
	Order   []int    `json:"order,omitempty"`   // order_sentence
	Blanks  []string `json:"blanks,omitempty"`  // dnd_gap: positional
}

// Q is a minimal view of a question needed for grading.
// Keep this in sync with whatever fields your store uses.
type Q struct {
	ID     string
	Type   string
	Order  int // 0-based position within the section
	Points float64
	Key    Key
}

// Result is the outcome of grading a single question response.
// Verdicts are binary: a question is worth all of its points or none.
type Result struct {
	Correct     bool
	AutoPoints  float64 // points awarded automatically
	MaxPoints   float64 // the question's max points
	NeedsManual bool    // true if examiner review is required
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, answer interface{}) Result
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, answer interface{}) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, answer interface{}) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		// unknown type: never auto-score, keep the denominator meaningful
		return Result{MaxPoints: q.Points, NeedsManual: true}
	}
	return s.Grade(ctx, q, answer)
}

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"true_false":     trueFalseStrategy{},
			"mcq_single":     singleIndexStrategy{},
			"select":         singleIndexStrategy{},
			"mcq_multi":      multiIndexStrategy{},
			"gap":            gapStrategy{},
			"order_sentence": orderStrategy{},
			"dnd_gap":        dndGapStrategy{},
			"short_text":     manualStrategy{},
			"essay":          manualStrategy{},
			"recording":      manualStrategy{},
		},
	}
}

// --- Strategies ---

type trueFalseStrategy struct{}

func (trueFalseStrategy) Grade(_ context.Context, q Q, answer interface{}) Result {
	res := Result{MaxPoints: q.Points}
	if q.Key.Value == nil {
		return res
	}
	b, ok := answer.(bool)
	if !ok || b != *q.Key.Value {
		return res
	}
	res.Correct = true
	res.AutoPoints = q.Points
	return res
}

type singleIndexStrategy struct{}

func (singleIndexStrategy) Grade(_ context.Context, q Q, answer interface{}) Result {
	res := Result{MaxPoints: q.Points}
	if q.Key.Index == nil {
		return res
	}
	idx, ok := toInt(answer)
	if !ok || idx != *q.Key.Index {
		return res
	}
	res.Correct = true
	res.AutoPoints = q.Points
	return res
}

type multiIndexStrategy struct{}

func (multiIndexStrategy) Grade(_ context.Context, q Q, answer interface{}) Result {
	res := Result{MaxPoints: q.Points}
	got, ok := toIntSlice(answer)
	if !ok {
		return res
	}
	// order-independent set equality; empty key vs empty answer counts as correct
	if !setEqual(toSet(got), toSet(q.Key.Indices)) {
		return res
	}
	res.Correct = true
	res.AutoPoints = q.Points
	return res
}

type gapStrategy struct{}

func (gapStrategy) Grade(_ context.Context, q Q, answer interface{}) Result {
	res := Result{MaxPoints: q.Points}
	s, ok := answer.(string)
	if !ok || len(q.Key.Answers) == 0 {
		return res
	}
	got := normalize(s)
	for _, accepted := range q.Key.Answers {
		if got == normalize(accepted) {
			res.Correct = true
			res.AutoPoints = q.Points
			return res
		}
	}
	return res
}

type orderStrategy struct{}

func (orderStrategy) Grade(_ context.Context, q Q, answer interface{}) Result {
	res := Result{MaxPoints: q.Points}
	got, ok := toIntSlice(answer)
	if !ok || len(q.Key.Order) == 0 || len(got) != len(q.Key.Order) {
		return res
	}
	// exact positional match only; a partially right ordering earns nothing
	for i, v := range got {
		if v != q.Key.Order[i] {
			return res
		}
	}
	res.Correct = true
	res.AutoPoints = q.Points
	return res
}

type dndGapStrategy struct{}

func (dndGapStrategy) Grade(_ context.Context, q Q, answer interface{}) Result {
	res := Result{MaxPoints: q.Points}
	got, ok := toStringSlice(answer)
	if !ok || len(q.Key.Blanks) == 0 || len(got) != len(q.Key.Blanks) {
		return res
	}
	for i, v := range got {
		if normalize(v) != normalize(q.Key.Blanks[i]) {
			return res
		}
	}
	res.Correct = true
	res.AutoPoints = q.Points
	return res
}

type manualStrategy struct{}

func (manualStrategy) Grade(_ context.Context, q Q, _ interface{}) Result {
	return Result{MaxPoints: q.Points, NeedsManual: true}
}

// helpers

// normalize trims surrounding whitespace and lowercases; gap answers are
// otherwise compared literally.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// toInt accepts ints and the float64 that encoding/json produces.
func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t == float64(int(t)) {
			return int(t), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func toIntSlice(v interface{}) ([]int, bool) {
	switch t := v.(type) {
	case []int:
		return t, true
	case []interface{}:
		out := make([]int, 0, len(t))
		for _, e := range t {
			n, ok := toInt(e)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	default:
		return nil, false
	}
}

func toStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []int) map[int]struct{} {
	m := make(map[int]struct{}, len(arr))
	for _, n := range arr {
		m[n] = struct{}{}
	}
	return m
}

func setEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
