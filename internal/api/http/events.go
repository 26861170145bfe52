package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	syncx "github.com/lingoprep/lingoprep-lms/internal/sync"
)

// GET /events?after=&limit= — submission events, oldest first, for
// downstream consumers (notification fan-out, external gradebooks).
func ListEventsHandler(db *sql.DB, repo *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		after, _ := strconv.ParseInt(q.Get("after"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))
		events, err := repo.List(r.Context(), db, after, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []syncx.Event{}
		}
		_ = json.NewEncoder(w).Encode(events)
	}
}
