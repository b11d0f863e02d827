package server

import (
	"encoding/json"
	"net/http"
)

// writeJSON is the single response path; a nil v encodes as the literal
// null body the current-event endpoint relies on.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError is for transport-level failures only; completion outcomes go
// out as CompleteResponse values with their own status codes.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
