package exam

import "context"

type AttemptListOpts struct {
	ExamID string // filter by exam
	UserID string // filter by test taker
	Status string // optional: in_progress|submitted
	Limit  int
	Offset int
}

// ManualGradeInput carries an examiner's mark for one writing or speaking
// section. Band is optional: left nil, the band table is consulted; set, it
// takes precedence (examiner rubrics assign bands directly).
type ManualGradeInput struct {
	Raw     float64  `json:"raw_score"`
	Band    *float64 `json:"band,omitempty"`
	Comment string   `json:"comment,omitempty"`
}

type Store interface {
	PutExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error)          // student-safe (no answer keys)
	GetExamAuthoring(ctx context.Context, id string) (Exam, error) // full tree, for authors/grading

	NewAttempt(ctx context.Context, examID, userID string) (Attempt, error)
	SaveAnswers(ctx context.Context, attemptID, sectionID string, answers map[string]interface{}) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)

	// Submit grades the attempt once and persists the complete result set
	// plus the terminal status atomically. A second call, concurrent or
	// not, returns ErrAlreadySubmitted.
	Submit(ctx context.Context, attemptID, userID string) (ResultSet, error)
	GetResults(ctx context.Context, attemptID string) (ResultSet, error)

	// ApplyManualGrades is the later write path for writing/speaking marks;
	// it updates section results and the overall band, never the attempt's
	// terminal status.
	ApplyManualGrades(ctx context.Context, attemptID string, updates map[string]ManualGradeInput, gradedBy string) (ResultSet, error)
}
