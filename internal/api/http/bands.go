package http

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lingoprep/lingoprep-lms/internal/bands"
)

// BandTableProvider hands out the currently loaded band table; the gateway
// swaps it after an admin update so in-flight submits keep a consistent
// snapshot.
type BandTableProvider interface {
	Current() *bands.Table
	Reload(t *bands.Table)
}

// GET /bands/{examType}
func GetBandTableHandler(p BandTableProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examType := chi.URLParam(r, "examType")
		entries := p.Current().Entries(examType)
		if len(entries) == 0 {
			http.Error(w, "no band table for "+examType, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(entries)
	}
}

// PUT /bands/{examType} — replaces the stored rows and reloads the table.
func PutBandTableHandler(db *sql.DB, p BandTableProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examType := chi.URLParam(r, "examType")
		var entries []bands.Entry
		if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		for i := range entries {
			entries[i].ExamType = examType
		}
		if err := bands.ReplaceSQL(r.Context(), db, examType, entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		t, err := bands.LoadSQL(r.Context(), db)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		p.Reload(t)
		_ = json.NewEncoder(w).Encode(map[string]int{"rows": len(entries)})
	}
}
