package exam_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/lingoprep/lingoprep-lms/internal/bands"
	"github.com/lingoprep/lingoprep-lms/internal/db"
	"github.com/lingoprep/lingoprep-lms/internal/exam"
	syncx "github.com/lingoprep/lingoprep-lms/internal/sync"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", t.Name())
	h, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func newSQLStore(t *testing.T) (*exam.SQLStore, *sql.DB) {
	t.Helper()
	h := openTestDB(t)
	if err := bands.SeedSQL(context.Background(), h); err != nil {
		t.Fatalf("seed bands: %v", err)
	}
	table, err := bands.LoadSQL(context.Background(), h)
	if err != nil {
		t.Fatalf("load bands: %v", err)
	}
	return exam.NewSQLStore(h, "sqlite", exam.NewEngine(table)), h
}

func TestSQLStoreSubmitRoundtrip(t *testing.T) {
	ctx := context.Background()
	store, h := newSQLStore(t)
	ex, answers := ieltsExam(30)
	if err := store.PutExam(ctx, ex); err != nil {
		t.Fatalf("put exam: %v", err)
	}

	a, err := store.NewAttempt(ctx, ex.ID, "user-1")
	if err != nil {
		t.Fatalf("new attempt: %v", err)
	}
	if _, err := store.SaveAnswers(ctx, a.ID, "sec-listening", answers); err != nil {
		t.Fatalf("save answers: %v", err)
	}

	rs, err := store.Submit(ctx, a.ID, "user-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// read back what was persisted
	stored, err := store.GetResults(ctx, a.ID)
	if err != nil {
		t.Fatalf("get results: %v", err)
	}
	if len(stored.Sections) != 2 {
		t.Fatalf("stored sections = %d, want 2", len(stored.Sections))
	}
	listening := sectionByID(t, stored, "sec-listening")
	if listening.Raw == nil || *listening.Raw != 30 || listening.Max != 40 {
		t.Fatalf("stored listening = %+v, want 30/40", listening)
	}
	if listening.Band == nil || *listening.Band != 7.0 {
		t.Fatalf("stored listening band = %v, want 7.0", listening.Band)
	}
	if len(listening.Rubric) != 4 {
		t.Fatalf("stored rubric units = %d, want 4", len(listening.Rubric))
	}
	writing := sectionByID(t, stored, "sec-writing")
	if writing.Raw != nil {
		t.Fatal("stored writing raw must be NULL, not zero")
	}
	if stored.OverallPercent == nil || *stored.OverallPercent != *rs.OverallPercent {
		t.Fatalf("stored percent = %v, want %v", stored.OverallPercent, rs.OverallPercent)
	}

	// the submit event rides the same transaction
	events, err := syncx.NewEventRepo().List(ctx, h, 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Type != syncx.TypeAttemptSubmitted || events[0].Key != a.ID {
		t.Fatalf("events = %+v, want one AttemptSubmitted for %s", events, a.ID)
	}

	if _, err := store.Submit(ctx, a.ID, "user-1"); !errors.Is(err, exam.ErrAlreadySubmitted) {
		t.Fatalf("second submit: err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestSQLStoreConcurrentSubmit(t *testing.T) {
	ctx := context.Background()
	store, h := newSQLStore(t)
	ex, answers := ieltsExam(20)
	_ = store.PutExam(ctx, ex)
	a, _ := store.NewAttempt(ctx, ex.ID, "user-1")
	if _, err := store.SaveAnswers(ctx, a.ID, "sec-listening", answers); err != nil {
		t.Fatalf("save answers: %v", err)
	}

	const n = 4
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
		if err == nil {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("submits succeeded %d times, want exactly 1", wins)
	}

	// exactly one result row per section, one terminal status
	var rows int
	if err := h.QueryRow(`SELECT COUNT(*) FROM attempt_section_results WHERE attempt_id=$1`, a.ID).Scan(&rows); err != nil {
		t.Fatalf("count result rows: %v", err)
	}
	if rows != 2 {
		t.Fatalf("result rows = %d, want 2", rows)
	}
	got, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if got.Status != exam.StatusSubmitted {
		t.Fatalf("status = %s, want submitted", got.Status)
	}
}

func TestSQLStoreListAttempts(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLStore(t)
	ex := grammarExam()
	_ = store.PutExam(ctx, ex)

	a1, _ := store.NewAttempt(ctx, ex.ID, "user-1")
	_, _ = store.NewAttempt(ctx, ex.ID, "user-2")

	mine, err := store.ListAttempts(ctx, exam.AttemptListOpts{UserID: "user-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != a1.ID {
		t.Fatalf("list for user-1 = %+v", mine)
	}

	open, err := store.ListAttempts(ctx, exam.AttemptListOpts{Status: exam.StatusInProgress})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("open attempts = %d, want 2", len(open))
	}
}

func TestSQLStoreApplyManualGrades(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLStore(t)
	ex, answers := ieltsExam(30)
	_ = store.PutExam(ctx, ex)
	a, _ := store.NewAttempt(ctx, ex.ID, "user-1")
	_, _ = store.SaveAnswers(ctx, a.ID, "sec-listening", answers)
	if _, err := store.Submit(ctx, a.ID, "user-1"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	band := 6.0
	if _, err := store.ApplyManualGrades(ctx, a.ID, map[string]exam.ManualGradeInput{
		"sec-writing": {Raw: 24, Band: &band, Comment: "clear structure"},
	}, "examiner-1"); err != nil {
		t.Fatalf("apply manual grades: %v", err)
	}

	rs, err := store.GetResults(ctx, a.ID)
	if err != nil {
		t.Fatalf("get results: %v", err)
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
	if rs.OverallBand == nil || *rs.OverallBand != 6.5 {
		t.Fatalf("overall band = %v, want 6.5", rs.OverallBand)
	}
}

func TestBandScaleSeedAndReplace(t *testing.T) {
	ctx := context.Background()
	h := openTestDB(t)
	if err := bands.SeedSQL(ctx, h); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// seeding twice must not duplicate rows
	if err := bands.SeedSQL(ctx, h); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	table, err := bands.LoadSQL(ctx, h)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if band, ok := table.Lookup("ielts", "listening", 30); !ok || band != 7.0 {
		t.Fatalf("seeded lookup = %v (ok=%v), want 7.0", band, ok)
	}

	custom := []bands.Entry{{ExamType: "cefr-mock", SectionType: "reading", MinRaw: 0, MaxRaw: 40, Band: 5.0}}
	if err := bands.ReplaceSQL(ctx, h, "cefr-mock", custom); err != nil {
		t.Fatalf("replace: %v", err)
	}
	table, err = bands.LoadSQL(ctx, h)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if band, ok := table.Lookup("cefr-mock", "reading", 12); !ok || band != 5.0 {
		t.Fatalf("custom lookup = %v (ok=%v), want 5.0", band, ok)
	}
	// existing standards untouched
	if _, ok := table.Lookup("ielts", "reading", 12); !ok {
		t.Fatal("replace of one exam type must not drop another")
	}
}
