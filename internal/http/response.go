package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"controljm/internal/core"
	"controljm/internal/services"
)

// syncOutcome reports the two halves of a write. localOk true means the
// record is durable and visible to local reads regardless of the remote half.
type syncOutcome struct {
	LocalOK     bool   `json:"localOk"`
	RemoteOK    bool   `json:"remoteOk"`
	RemoteError string `json:"remoteError,omitempty"`
}

func newSyncOutcome(result services.WriteResult) syncOutcome {
	outcome := syncOutcome{
		LocalOK:  result.LocalOK,
		RemoteOK: result.RemoteOK,
	}
	if result.RemoteErr != nil {
		outcome.RemoteError = result.RemoteErr.Error()
	}
	return outcome
}

type saveResponse struct {
	Record core.Record `json:"record"`
	Sync   syncOutcome `json:"sync"`
}

type deleteResponse struct {
	ID   string      `json:"id"`
	Sync syncOutcome `json:"sync"`
}

type statusResponse struct {
	Status     services.Status `json:"status"`
	Configured bool            `json:"configured"`
}

type configResponse struct {
	URL        string `json:"url"`
	AnonKeySet bool   `json:"anonKeySet"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are already written; nothing left to do but note it.
		slog.Warn("Encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
