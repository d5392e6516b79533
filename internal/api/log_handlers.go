package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fuomag9/checkpulse/internal/logstore"
)

const ndjsonContentType = "application/x-ndjson"

// HandleGetLogs lists live log ids, plus archive ids when ?archived=true
func HandleGetLogs(logs LogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeArchived := false
		if v := r.URL.Query().Get("archived"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "Invalid archived flag", http.StatusBadRequest)
				return
			}
			includeArchived = b
		}

		ids, err := logs.List(r.Context(), includeArchived)
		if err != nil {
			http.Error(w, "Failed to list logs", http.StatusInternalServerError)
			return
		}

		writeJSON(w, ids)
	}
}

// HandleGetLog streams the live log of a check as newline-delimited JSON
func HandleGetLog(logs LogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := logs.ReadAll(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeLogError(w, err)
			return
		}

		w.Header().Set("Content-Type", ndjsonContentType)
		w.Write(data)
	}
}

// HandleGetArchive returns the decompressed content of one archive
func HandleGetArchive(logs LogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := logs.ReadArchive(r.Context(), chi.URLParam(r, "archiveId"))
		if err != nil {
			writeLogError(w, err)
			return
		}

		w.Header().Set("Content-Type", ndjsonContentType)
		w.Write(data)
	}
}

func writeLogError(w http.ResponseWriter, err error) {
	if errors.Is(err, logstore.ErrNotFound) {
		http.Error(w, "Log not found", http.StatusNotFound)
		return
	}
	http.Error(w, "Failed to read log", http.StatusInternalServerError)
}
