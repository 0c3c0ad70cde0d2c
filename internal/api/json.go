package api

import (
	"encoding/json"
	"io"
	"net/http"
)

// Problem is an RFC 7807 body. RunID is set on errors about a specific run.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	RunID    string `json:"runId,omitempty"`
}

// itemsBody is the envelope of every list endpoint.
type itemsBody[T any] struct {
	Items []T `json:"items"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeItems never encodes a nil slice as null.
func writeItems[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, itemsBody[T]{Items: items})
}

func writeText(w http.ResponseWriter, status int, wt io.WriterTo) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = wt.WriteTo(w)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeRunProblem(w, status, title, detail, instance, "")
}

func writeRunProblem(w http.ResponseWriter, status int, title, detail, instance, runID string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
		RunID:    runID,
	})
}
