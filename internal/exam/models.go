package exam

import "github.com/lingoprep/lingoprep-lms/internal/grading"

// Section types. Reading and listening auto-score; writing and speaking
// wait for examiner marks.
const (
	SectionReading    = "reading"
	SectionListening  = "listening"
	SectionWriting    = "writing"
	SectionSpeaking   = "speaking"
	SectionGrammar    = "grammar"
	SectionVocabulary = "vocabulary"
)

// Attempt statuses. submitted is terminal: an attempt is graded exactly
// once and never mutated by this engine afterwards.
const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
)

// Section result statuses.
const (
	ResultCompleted     = "completed"      // auto-scored
	ResultPendingManual = "pending_manual" // waiting for examiner marks
	ResultGraded        = "graded"         // examiner marks applied
)

type Question struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"` // true_false, mcq_single, select, mcq_multi, gap, order_sentence, dnd_gap, short_text, essay, recording
	Order      int         `json:"order"`
	PromptHTML string      `json:"prompt_html,omitempty"`
	Choices    []string    `json:"choices,omitempty"`
	Key        grading.Key `json:"key,omitempty"`
	Points     float64     `json:"points"` // defaults to 1 when unset
}

type Section struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

type Exam struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Type     string    `json:"type"` // exam standard, e.g. "ielts"; "" for plain exams
	Sections []Section `json:"sections"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

type Attempt struct {
	ID          string                 `json:"id"`
	ExamID      string                 `json:"exam_id"`
	UserID      string                 `json:"user_id"`
	Status      string                 `json:"status"` // in_progress|submitted
	Answers     map[string]interface{} `json:"answers"`
	StartedAt   int64                  `json:"started_at"`
	SubmittedAt int64                  `json:"submitted_at,omitempty"`
}

// SectionResult is one section's graded outcome. Raw nil means "awaiting
// manual grading", which is not the same thing as zero.
type SectionResult struct {
	SectionID   string              `json:"section_id"`
	SectionType string              `json:"section_type"`
	Raw         *float64            `json:"raw_score"`
	Max         float64             `json:"max_score"`
	Band        *float64            `json:"band,omitempty"`
	Status      string              `json:"status"` // completed|pending_manual|graded
	Rubric      []grading.UnitScore `json:"rubric,omitempty"`
	GradeErrors int                 `json:"grade_errors,omitempty"`
}

// ResultSet is everything one submission produces. The caller persists it
// atomically together with the attempt's terminal status.
type ResultSet struct {
	AttemptID      string          `json:"attempt_id"`
	Sections       []SectionResult `json:"sections"`
	OverallPercent *float64        `json:"overall_percent"`
	OverallBand    *float64        `json:"overall_band,omitempty"`
	SubmittedAt    int64           `json:"submitted_at"`
}

func (q Question) points() float64 {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// gradingView converts a section's questions to the grading package's
// minimal view, applying the default point value.
func (s Section) gradingView() []grading.Q {
	out := make([]grading.Q, 0, len(s.Questions))
	for _, q := range s.Questions {
		out = append(out, grading.Q{
			ID:     q.ID,
			Type:   q.Type,
			Order:  q.Order,
			Points: q.points(),
			Key:    q.Key,
		})
	}
	return out
}

// manualOnly reports whether a section is graded exclusively by hand.
func manualOnly(sectionType string) bool {
	return sectionType == SectionWriting || sectionType == SectionSpeaking
}
