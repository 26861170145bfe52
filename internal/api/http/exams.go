package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lingoprep/lingoprep-lms/internal/exam"
	"github.com/lingoprep/lingoprep-lms/internal/rbac"
)

// PUT /exams/{examID}
func PutExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		var e exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if id == "" || (e.ID != "" && e.ID != id) {
			http.Error(w, "exam id mismatch", http.StatusBadRequest)
			return
		}
		e.ID = id
		if err := store.PutExam(r.Context(), e); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(e)
	}
}

// GET /exams/{examID}
// Answer keys are stripped unless the caller may view them.
func GetExamHandler(store exam.Store) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		var (
			e   exam.Exam
			err error
		)
		if checker.Has(rbac.RoleFromContext(r.Context()), "exam:view-keys") {
			e, err = store.GetExamAuthoring(r.Context(), id)
		} else {
			e, err = store.GetExam(r.Context(), id)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(e)
	}
}
