package exam

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lingoprep/lingoprep-lms/internal/bands"
	"github.com/lingoprep/lingoprep-lms/internal/grading"
)

type memoryStore struct {
	mu       sync.RWMutex
	engine   Engine
	exams    map[string]Exam
	attempts map[string]Attempt
	results  map[string]ResultSet
}

// NewInMemoryStore backs dev mode and tests. The mutex doubles as the
// per-attempt serialization the submit path requires.
func NewInMemoryStore(engine Engine) Store {
	return &memoryStore{
		engine:   engine,
		exams:    map[string]Exam{},
		attempts: map[string]Attempt{},
		results:  map[string]ResultSet{},
	}
}

func (m *memoryStore) PutExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	m.exams[e.ID] = e
	return nil
}

func (m *memoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, errors.New("exam not found")
	}
	return sanitize(e), nil
}

func (m *memoryStore) GetExamAuthoring(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, errors.New("exam not found")
	}
	return e, nil
}

func (m *memoryStore) NewAttempt(_ context.Context, examID, userID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[examID]; !ok {
		return Attempt{}, errors.New("exam not found")
	}
	a := Attempt{
		ID:        uuid.NewString(),
		ExamID:    examID,
		UserID:    userID,
		Status:    StatusInProgress,
		Answers:   map[string]interface{}{},
		StartedAt: time.Now().Unix(),
	}
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) SaveAnswers(_ context.Context, attemptID, sectionID string, answers map[string]interface{}) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, errors.New("attempt not found")
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, ErrAlreadySubmitted
	}
	mergeAnswers(a.Answers, sectionID, answers)
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, errors.New("attempt not found")
	}
	return a, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if opts.ExamID != "" && a.ExamID != opts.ExamID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryStore) Submit(ctx context.Context, attemptID, userID string) (ResultSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return ResultSet{}, errors.New("attempt not found")
	}
	if userID != "" && a.UserID != userID {
		return ResultSet{}, ErrNotOwner
	}
	ex := m.exams[a.ExamID]
	rs, err := m.engine.GradeAttempt(ctx, ex, a, time.Now())
	if err != nil {
		return ResultSet{}, err
	}
	a.Status = StatusSubmitted
	a.SubmittedAt = rs.SubmittedAt
	m.attempts[attemptID] = a
	m.results[attemptID] = rs
	return rs, nil
}

func (m *memoryStore) GetResults(_ context.Context, attemptID string) (ResultSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs, ok := m.results[attemptID]
	if !ok {
		return ResultSet{}, errors.New("results not found")
	}
	return rs, nil
}

func (m *memoryStore) ApplyManualGrades(_ context.Context, attemptID string, updates map[string]ManualGradeInput, _ string) (ResultSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.results[attemptID]
	if !ok {
		return ResultSet{}, errors.New("results not found")
	}
	a := m.attempts[attemptID]
	ex := m.exams[a.ExamID]
	if err := applyManual(&rs, ex.Type, m.engine.Bands, updates); err != nil {
		return ResultSet{}, err
	}
	m.results[attemptID] = rs
	return rs, nil
}

// sanitize deep-copies the question tree with answer keys removed; the
// stored exam must stay intact.
func sanitize(e Exam) Exam {
	secs := make([]Section, len(e.Sections))
	for i, s := range e.Sections {
		qs := make([]Question, len(s.Questions))
		for j, q := range s.Questions {
			q.Key = grading.Key{}
			qs[j] = q
		}
		s.Questions = qs
		secs[i] = s
	}
	e.Sections = secs
	return e
}

// mergeAnswers writes one section's answers into the canonical saved shape
// (per-section records keyed by section id).
func mergeAnswers(saved map[string]interface{}, sectionID string, answers map[string]interface{}) {
	rec, _ := saved[sectionID].(map[string]interface{})
	if rec == nil {
		rec = map[string]interface{}{"answers": map[string]interface{}{}}
	}
	m, _ := rec["answers"].(map[string]interface{})
	if m == nil {
		m = map[string]interface{}{}
	}
	for k, v := range answers {
		m[k] = v
	}
	rec["answers"] = m
	saved[sectionID] = rec
}

// applyManual folds examiner marks into a result set and recomputes the
// overall band. Auto-scored sections are not touchable here.
func applyManual(rs *ResultSet, examType string, table BandLookup, updates map[string]ManualGradeInput) error {
	for i := range rs.Sections {
		sr := &rs.Sections[i]
		in, ok := updates[sr.SectionID]
		if !ok {
			continue
		}
		if !manualOnly(sr.SectionType) {
			return errors.New("section " + sr.SectionID + " is auto-scored")
		}
		if in.Raw < 0 || in.Raw > sr.Max {
			return errors.New("raw score out of range for section " + sr.SectionID)
		}
		raw := in.Raw
		sr.Raw = &raw
		sr.Status = ResultGraded
		switch {
		case in.Band != nil:
			sr.Band = in.Band
		case table != nil:
			if band, ok := table.Lookup(examType, sr.SectionType, raw); ok {
				sr.Band = &band
			}
		}
	}
	var sectionBands []float64
	for _, sr := range rs.Sections {
		if sr.Band != nil {
			sectionBands = append(sectionBands, *sr.Band)
		}
	}
	rs.OverallBand = nil
	if overall, ok := bands.Overall(sectionBands); ok {
		rs.OverallBand = &overall
	}
	return nil
}
