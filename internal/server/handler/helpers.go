package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeReturn sends the legacy success envelope: {"success": 1, "return": v}.
func writeReturn(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": 1,
		"return":  v,
	})
}

// writeFailure sends the legacy failure envelope: {"success": 0, "error": msg}.
// The envelope always ships with HTTP 200, matching the upstream API shape
// clients were written against.
func writeFailure(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": 0,
		"error":   msg,
	})
}

// requestTimestamp reads the optional "timestamp" query parameter (ms since
// epoch), defaulting to the current time.
func requestTimestamp(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("timestamp")
	if raw == "" {
		return time.Now().UnixMilli(), nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
