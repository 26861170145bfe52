package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lingoprep/lingoprep-lms/internal/grading"
	syncx "github.com/lingoprep/lingoprep-lms/internal/sync"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	engine Engine
	events *syncx.EventRepo
}

func NewSQLStore(db *sql.DB, driver string, engine Engine) *SQLStore {
	return &SQLStore{db: db, driver: driver, engine: engine, events: syncx.NewEventRepo()}
}

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	sj, err := json.Marshal(e.Sections)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exams (id,title,exam_type,sections_json,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, exam_type=EXCLUDED.exam_type, sections_json=EXCLUDED.sections_json`,
		e.ID, e.Title, e.Type, string(sj), time.Now().Unix())
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := s.GetExamAuthoring(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	return sanitize(e), nil
}

func (s *SQLStore) GetExamAuthoring(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,exam_type,sections_json,created_at FROM exams WHERE id=$1`, id)
	var e Exam
	var sj string
	if err := row.Scan(&e.ID, &e.Title, &e.Type, &sj, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, errors.New("exam not found")
		}
		return Exam{}, err
	}
	if err := json.Unmarshal([]byte(sj), &e.Sections); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (s *SQLStore) NewAttempt(ctx context.Context, examID, userID string) (Attempt, error) {
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM exams WHERE id=$1`, examID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, errors.New("exam not found")
		}
		return Attempt{}, err
	}
	a := Attempt{
		ID:        uuid.NewString(),
		ExamID:    examID,
		UserID:    userID,
		Status:    StatusInProgress,
		Answers:   map[string]interface{}{},
		StartedAt: time.Now().Unix(),
	}
	aj, _ := json.Marshal(a.Answers)
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts (id,exam_id,user_id,status,answers_json,started_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.ExamID, a.UserID, a.Status, string(aj), a.StartedAt)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) SaveAnswers(ctx context.Context, attemptID, sectionID string, answers map[string]interface{}) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, ErrAlreadySubmitted
	}
	if a.Answers == nil {
		a.Answers = map[string]interface{}{}
	}
	mergeAnswers(a.Answers, sectionID, answers)
	buf, _ := json.Marshal(a.Answers)
	// status guard repeated here: a submit racing this save must win
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET answers_json=$1 WHERE id=$2 AND status=$3`,
		string(buf), attemptID, StatusInProgress)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Attempt{}, ErrAlreadySubmitted
	}
	return s.GetAttempt(ctx, attemptID)
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,exam_id,user_id,status,answers_json,started_at,COALESCE(submitted_at,0) FROM attempts WHERE id=$1`, id)
	var a Attempt
	var aj string
	if err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &a.Status, &aj, &a.StartedAt, &a.SubmittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, errors.New("attempt not found")
		}
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(aj), &a.Answers); err != nil {
		a.Answers = map[string]interface{}{}
	}
	return a, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT id,exam_id,user_id,status,answers_json,started_at,COALESCE(submitted_at,0) FROM attempts WHERE 1=1`
	args := []interface{}{}
	n := 0
	add := func(cond string, v interface{}) {
		n++
		q += fmt.Sprintf(" AND %s=$%d", cond, n)
		args = append(args, v)
	}
	if opts.ExamID != "" {
		add("exam_id", opts.ExamID)
	}
	if opts.UserID != "" {
		add("user_id", opts.UserID)
	}
	if opts.Status != "" {
		add("status", opts.Status)
	}
	q += " ORDER BY started_at DESC"
	if opts.Limit > 0 {
		n++
		q += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		n++
		q += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, opts.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var a Attempt
		var aj string
		if err := rows.Scan(&a.ID, &a.ExamID, &a.UserID, &a.Status, &aj, &a.StartedAt, &a.SubmittedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(aj), &a.Answers); err != nil {
			a.Answers = map[string]interface{}{}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Submit grades once and commits the full result set with the terminal
// status in one transaction. The conditional UPDATE is the serialization
// point: of two racing submits, exactly one sees a row flip from
// in_progress and commits its grading pass.
func (s *SQLStore) Submit(ctx context.Context, attemptID, userID string) (ResultSet, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return ResultSet{}, err
	}
	if userID != "" && a.UserID != userID {
		return ResultSet{}, ErrNotOwner
	}
	ex, err := s.GetExamAuthoring(ctx, a.ExamID)
	if err != nil {
		return ResultSet{}, ErrNotGradable{Reason: "exam " + a.ExamID + " not found"}
	}

	rs, err := s.engine.GradeAttempt(ctx, ex, a, time.Now())
	if err != nil {
		return ResultSet{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ResultSet{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE attempts SET status=$1, submitted_at=$2, overall_percent=$3, overall_band=$4
		 WHERE id=$5 AND status=$6`,
		StatusSubmitted, rs.SubmittedAt, nullFloat(rs.OverallPercent), nullFloat(rs.OverallBand),
		attemptID, StatusInProgress)
	if err != nil {
		return ResultSet{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ResultSet{}, ErrAlreadySubmitted
	}

	for _, sr := range rs.Sections {
		if err := insertSectionResult(ctx, tx, attemptID, sr); err != nil {
			return ResultSet{}, err
		}
	}

	payload, _ := json.Marshal(rs)
	if err := s.events.Append(ctx, tx, syncx.Event{
		Type:     syncx.TypeAttemptSubmitted,
		Key:      attemptID,
		DataJSON: string(payload),
	}); err != nil {
		return ResultSet{}, err
	}

	if err := tx.Commit(); err != nil {
		return ResultSet{}, err
	}
	return rs, nil
}

func (s *SQLStore) GetResults(ctx context.Context, attemptID string) (ResultSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(submitted_at,0), overall_percent, overall_band FROM attempts WHERE id=$1 AND status=$2`,
		attemptID, StatusSubmitted)
	var rs ResultSet
	var pct, band sql.NullFloat64
	if err := row.Scan(&rs.SubmittedAt, &pct, &band); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ResultSet{}, errors.New("results not found")
		}
		return ResultSet{}, err
	}
	rs.AttemptID = attemptID
	rs.OverallPercent = fromNull(pct)
	rs.OverallBand = fromNull(band)

	rows, err := s.db.QueryContext(ctx,
		`SELECT section_id,section_type,raw_score,max_score,band,status,rubric_json,grade_errors
		 FROM attempt_section_results WHERE attempt_id=$1 ORDER BY section_id`, attemptID)
	if err != nil {
		return ResultSet{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var sr SectionResult
		var raw, b sql.NullFloat64
		var rubric sql.NullString
		if err := rows.Scan(&sr.SectionID, &sr.SectionType, &raw, &sr.Max, &b, &sr.Status, &rubric, &sr.GradeErrors); err != nil {
			return ResultSet{}, err
		}
		sr.Raw = fromNull(raw)
		sr.Band = fromNull(b)
		if rubric.Valid && rubric.String != "" {
			var units []grading.UnitScore
			if err := json.Unmarshal([]byte(rubric.String), &units); err == nil {
				sr.Rubric = units
			}
		}
		rs.Sections = append(rs.Sections, sr)
	}
	return rs, rows.Err()
}

func (s *SQLStore) ApplyManualGrades(ctx context.Context, attemptID string, updates map[string]ManualGradeInput, gradedBy string) (ResultSet, error) {
	rs, err := s.GetResults(ctx, attemptID)
	if err != nil {
		return ResultSet{}, err
	}
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return ResultSet{}, err
	}
	ex, err := s.GetExamAuthoring(ctx, a.ExamID)
	if err != nil {
		return ResultSet{}, err
	}
	if err := applyManual(&rs, ex.Type, s.engine.Bands, updates); err != nil {
		return ResultSet{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ResultSet{}, err
	}
	defer tx.Rollback()

	for _, sr := range rs.Sections {
		in, ok := updates[sr.SectionID]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE attempt_section_results SET raw_score=$1, band=$2, status=$3, graded_by=$4, comment=$5
			 WHERE attempt_id=$6 AND section_id=$7`,
			nullFloat(sr.Raw), nullFloat(sr.Band), sr.Status, gradedBy, in.Comment, attemptID, sr.SectionID); err != nil {
			return ResultSet{}, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE attempts SET overall_band=$1 WHERE id=$2`,
		nullFloat(rs.OverallBand), attemptID); err != nil {
		return ResultSet{}, err
	}
	if err := tx.Commit(); err != nil {
		return ResultSet{}, err
	}
	return rs, nil
}

func insertSectionResult(ctx context.Context, tx *sql.Tx, attemptID string, sr SectionResult) error {
	var rubric interface{}
	if len(sr.Rubric) > 0 {
		buf, err := json.Marshal(sr.Rubric)
		if err != nil {
			return err
		}
		rubric = string(buf)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO attempt_section_results
		 (attempt_id,section_id,section_type,raw_score,max_score,band,status,rubric_json,grade_errors)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		attemptID, sr.SectionID, sr.SectionType, nullFloat(sr.Raw), sr.Max, nullFloat(sr.Band),
		sr.Status, rubric, sr.GradeErrors)
	return err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
