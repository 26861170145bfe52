package exam_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lingoprep/lingoprep-lms/internal/exam"
)

func TestMemoryStoreSubmitFlow(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore(newEngine())
	ex, answers := ieltsExam(30)
	if err := store.PutExam(ctx, ex); err != nil {
		t.Fatalf("put exam: %v", err)
	}

	a, err := store.NewAttempt(ctx, ex.ID, "user-1")
	if err != nil {
		t.Fatalf("new attempt: %v", err)
	}
	if a.Status != exam.StatusInProgress {
		t.Fatalf("status = %s", a.Status)
	}

	if _, err := store.SaveAnswers(ctx, a.ID, "sec-listening", answers); err != nil {
		t.Fatalf("save answers: %v", err)
	}

	rs, err := store.Submit(ctx, a.ID, "user-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	listening := sectionByID(t, rs, "sec-listening")
	if listening.Raw == nil || *listening.Raw != 30 {
		t.Fatalf("listening raw = %v, want 30", listening.Raw)
	}

	got, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if got.Status != exam.StatusSubmitted || got.SubmittedAt == 0 {
		t.Fatalf("attempt after submit = %+v", got)
	}

	stored, err := store.GetResults(ctx, a.ID)
	if err != nil {
		t.Fatalf("get results: %v", err)
	}
	if stored.OverallBand == nil || *stored.OverallBand != 7.0 {
		t.Fatalf("stored overall band = %v, want 7.0", stored.OverallBand)
	}

	// the attempt is sealed
	if _, err := store.SaveAnswers(ctx, a.ID, "sec-listening", answers); !errors.Is(err, exam.ErrAlreadySubmitted) {
		t.Fatalf("save after submit: err = %v, want ErrAlreadySubmitted", err)
	}
	if _, err := store.Submit(ctx, a.ID, "user-1"); !errors.Is(err, exam.ErrAlreadySubmitted) {
		t.Fatalf("second submit: err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestMemoryStoreSubmitOwnership(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore(newEngine())
	ex := grammarExam()
	_ = store.PutExam(ctx, ex)
	a, _ := store.NewAttempt(ctx, ex.ID, "user-1")

	if _, err := store.Submit(ctx, a.ID, "intruder"); !errors.Is(err, exam.ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}

func TestMemoryStoreConcurrentSubmit(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore(newEngine())
	ex, answers := ieltsExam(25)
	_ = store.PutExam(ctx, ex)
	a, _ := store.NewAttempt(ctx, ex.ID, "user-1")
	_, _ = store.SaveAnswers(ctx, a.ID, "sec-listening", answers)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Submit(ctx, a.ID, "user-1")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, exam.ErrAlreadySubmitted):
		default:
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("submits succeeded %d times, want exactly 1", wins)
	}

	got, _ := store.GetAttempt(ctx, a.ID)
	if got.Status != exam.StatusSubmitted {
		t.Fatalf("status = %s, want submitted", got.Status)
	}
}

func TestMemoryStoreGetExamStripsKeys(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore(newEngine())
	ex := grammarExam()
	_ = store.PutExam(ctx, ex)

	safe, err := store.GetExam(ctx, ex.ID)
	if err != nil {
		t.Fatalf("get exam: %v", err)
	}
	for _, s := range safe.Sections {
		for _, q := range s.Questions {
			if q.Key.Value != nil || q.Key.Index != nil || len(q.Key.Indices) > 0 ||
				len(q.Key.Answers) > 0 || len(q.Key.Order) > 0 || len(q.Key.Blanks) > 0 {
				t.Fatalf("question %s leaked its answer key", q.ID)
			}
		}
	}

	// stripping must not damage the stored tree
	full, err := store.GetExamAuthoring(ctx, ex.ID)
	if err != nil {
		t.Fatalf("get exam authoring: %v", err)
	}
	if full.Sections[0].Questions[0].Key.Value == nil {
		t.Fatal("authoring view lost its answer key")
	}
}

func TestMemoryStoreApplyManualGrades(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore(newEngine())
	ex, answers := ieltsExam(30)
	_ = store.PutExam(ctx, ex)
	a, _ := store.NewAttempt(ctx, ex.ID, "user-1")
	_, _ = store.SaveAnswers(ctx, a.ID, "sec-listening", answers)
	if _, err := store.Submit(ctx, a.ID, "user-1"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	band := 6.0
	rs, err := store.ApplyManualGrades(ctx, a.ID, map[string]exam.ManualGradeInput{
		"sec-writing": {Raw: 24, Band: &band, Comment: "solid task response"},
	}, "examiner-1")
	if err != nil {
		t.Fatalf("apply manual grades: %v", err)
	}

	writing := sectionByID(t, rs, "sec-writing")
	if writing.Raw == nil || *writing.Raw != 24 {
		t.Fatalf("writing raw = %v, want 24", writing.Raw)
	}
	if writing.Band == nil || *writing.Band != 6.0 {
		t.Fatalf("writing band = %v, want 6.0", writing.Band)
	}
	if writing.Status != exam.ResultGraded {
		t.Fatalf("writing status = %s, want %s", writing.Status, exam.ResultGraded)
	}
	// listening 7.0 + writing 6.0 -> avg 6.5
	if rs.OverallBand == nil || *rs.OverallBand != 6.5 {
		t.Fatalf("overall band = %v, want 6.5", rs.OverallBand)
	}

	// marks outside the section's range are rejected
	if _, err := store.ApplyManualGrades(ctx, a.ID, map[string]exam.ManualGradeInput{
		"sec-writing": {Raw: 99},
	}, "examiner-1"); err == nil {
		t.Fatal("expected out-of-range error")
	}
	// auto-scored sections are not manually gradable
	if _, err := store.ApplyManualGrades(ctx, a.ID, map[string]exam.ManualGradeInput{
		"sec-listening": {Raw: 5},
	}, "examiner-1"); err == nil {
		t.Fatal("expected auto-scored rejection")
	}
}
