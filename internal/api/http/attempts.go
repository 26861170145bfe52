package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	authmw "github.com/lingoprep/lingoprep-lms/internal/auth/middleware"
	"github.com/lingoprep/lingoprep-lms/internal/exam"
	"github.com/lingoprep/lingoprep-lms/internal/rbac"
)

// POST /attempts  { "exam_id": "..." }
func CreateAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamID string `json:"exam_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		userID := authmw.SubjectFromContext(r.Context())
		if req.ExamID == "" || userID == "" {
			http.Error(w, "exam_id required", http.StatusBadRequest)
			return
		}
		a, err := store.NewAttempt(r.Context(), req.ExamID, userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// PUT /attempts/{attemptID}/sections/{sectionID}/answers
func SaveAnswersHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		sectionID := chi.URLParam(r, "sectionID")
		var answers map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := store.SaveAnswers(r.Context(), attemptID, sectionID, answers)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// POST /attempts/{attemptID}/submit
// The grading pass runs once; a repeat submit gets 409.
func SubmitAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		userID := authmw.SubjectFromContext(r.Context())
		rs, err := store.Submit(r.Context(), attemptID, userID)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		_ = json.NewEncoder(w).Encode(rs)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if !mayViewAttempt(r, a.UserID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// GET /attempts/{attemptID}/results
func GetResultsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		a, err := store.GetAttempt(r.Context(), attemptID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if !mayViewAttempt(r, a.UserID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		rs, err := store.GetResults(r.Context(), attemptID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(rs)
	}
}

// GET /attempts?exam_id=&user_id=&status=&limit=&offset=
func ListAttemptsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := exam.AttemptListOpts{
			ExamID: q.Get("exam_id"),
			UserID: q.Get("user_id"),
			Status: q.Get("status"),
		}
		opts.Limit, _ = strconv.Atoi(q.Get("limit"))
		opts.Offset, _ = strconv.Atoi(q.Get("offset"))
		// students only ever see their own attempts
		if !rbac.NewChecker(nil).Has(rbac.RoleFromContext(r.Context()), "attempt:view-all") {
			opts.UserID = authmw.SubjectFromContext(r.Context())
		}
		out, err := store.ListAttempts(r.Context(), opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

type applyGradesReq struct {
	Sections map[string]exam.ManualGradeInput `json:"sections"` // section_id -> mark
}

// POST /attempts/{attemptID}/grades — examiner marks for writing/speaking
func ApplyManualGradesHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var req applyGradesReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		gradedBy := authmw.SubjectFromContext(r.Context())
		rs, err := store.ApplyManualGrades(r.Context(), attemptID, req.Sections, gradedBy)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(rs)
	}
}

func mayViewAttempt(r *http.Request, ownerID string) bool {
	if authmw.SubjectFromContext(r.Context()) == ownerID {
		return true
	}
	return rbac.NewChecker(nil).Has(rbac.RoleFromContext(r.Context()), "attempt:view-all")
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, exam.ErrAlreadySubmitted):
		return http.StatusConflict
	case errors.Is(err, exam.ErrNotOwner):
		return http.StatusForbidden
	default:
		var ng exam.ErrNotGradable
		if errors.As(err, &ng) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	}
}
