package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fuomag9/checkpulse/internal/models"
	"github.com/fuomag9/checkpulse/internal/store"
	"github.com/fuomag9/checkpulse/internal/uptime"
)

// CheckSummary is one row of the check listing
type CheckSummary struct {
	ID            string       `json:"id"`
	State         models.State `json:"state,omitempty"`
	LastCheckedAt int64        `json:"lastCheckedAt,omitempty"`
	Target        string       `json:"target,omitempty"`
	Invalid       string       `json:"invalid,omitempty"`
}

// HandleGetChecks lists every stored check with its current state.
// Malformed checks are listed with the reason they are skipped.
func HandleGetChecks(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := s.List(r.Context(), models.ChecksCollection)
		if err != nil {
			http.Error(w, "Failed to list checks", http.StatusInternalServerError)
			return
		}

		summaries := make([]CheckSummary, 0, len(ids))
		for _, id := range ids {
			raw, err := s.Read(r.Context(), models.ChecksCollection, id)
			if err != nil {
				// Removed between list and read.
				continue
			}
			check, err := models.ValidateCheck(raw)
			if err != nil {
				summaries = append(summaries, CheckSummary{ID: id, Invalid: err.Error()})
				continue
			}
			summaries = append(summaries, CheckSummary{
				ID:            check.ID,
				State:         check.State,
				LastCheckedAt: check.LastCheckedAt,
				Target:        check.Method + " " + check.Target(),
			})
		}

		writeJSON(w, summaries)
	}
}

// HandleGetCheck returns a single validated check
func HandleGetCheck(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		raw, err := s.Read(r.Context(), models.ChecksCollection, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "Check not found", http.StatusNotFound)
			} else {
				http.Error(w, "Failed to fetch check", http.StatusInternalServerError)
			}
			return
		}

		check, err := models.ValidateCheck(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		writeJSON(w, check)
	}
}

// HandleGetCheckUptime returns uptime statistics for ?period= (default 24h)
func HandleGetCheckUptime(calc *uptime.Calculator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		period := 24 * time.Hour
		if p := r.URL.Query().Get("period"); p != "" {
			d, err := time.ParseDuration(p)
			if err != nil || d <= 0 {
				http.Error(w, "Invalid period", http.StatusBadRequest)
				return
			}
			period = d
		}

		stats, err := calc.CalculateUptimeForPeriod(r.Context(), id, period)
		if err != nil {
			http.Error(w, "Failed to calculate uptime", http.StatusInternalServerError)
			return
		}

		writeJSON(w, stats)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
