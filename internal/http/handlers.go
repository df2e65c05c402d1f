package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"controljm/internal/core"
	"controljm/internal/remote"
	"controljm/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleListCollection serves the local records of one collection, scoped to
// the requesting user. Remote state never blocks a read.
func (s *Server) handleListCollection(w http.ResponseWriter, r *http.Request) {
	collection, err := parseCollection(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	userID := requestUserID(r)

	key := listingKey(collection, userID)
	if records, ok := s.listings.Get(key); ok {
		writeJSON(w, http.StatusOK, records)
		return
	}

	records, err := s.coordinator.GetAll(r.Context(), collection)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading collection failed")
		return
	}
	owned := core.FilterByUser(records, userID)

	s.listings.Set(key, owned)
	writeJSON(w, http.StatusOK, owned)
}

// handleSaveRecord upserts one record. The body is the full record; a missing
// id means create, an existing id means replace. The response reports both
// write halves so the client can surface degraded mode.
func (s *Server) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	collection, err := parseCollection(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	record, err := decodeRecord(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if record.UserID() == "" {
		record.SetUserID(requestUserID(r))
	}
	if record.ID() == "" {
		record["id"] = uuid.NewString()
	}
	if collection == core.Expenses {
		record.NormalizeMonthsField()
	}
	if err := validateRecord(collection, record); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result, err := s.coordinator.Save(r.Context(), collection, record)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "saving record failed")
		return
	}

	s.listings.Flush()
	writeJSON(w, http.StatusOK, saveResponse{
		Record: record,
		Sync:   newSyncOutcome(result),
	})
}

// handleDeleteRecord removes a record by id. Deleting an absent id succeeds.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	collection, err := parseCollection(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing record id")
		return
	}

	result, err := s.coordinator.Delete(r.Context(), collection, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "deleting record failed")
		return
	}

	s.listings.Flush()
	writeJSON(w, http.StatusOK, deleteResponse{
		ID:   id,
		Sync: newSyncOutcome(result),
	})
}

// handleSync runs the user-triggered full push-then-pull cycle. It is the
// recovery path out of offline and error states.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	err := s.coordinator.ManualSync(r.Context(), userID)
	switch {
	case errors.Is(err, services.ErrNotConfigured):
		writeError(w, http.StatusConflict, "remote backend not configured")
		return
	case err != nil:
		writeJSON(w, http.StatusBadGateway, statusResponse{
			Status:     s.coordinator.Status(),
			Configured: true,
		})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:     s.coordinator.Status(),
		Configured: true,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:     s.coordinator.Status(),
		Configured: s.coordinator.IsConfigured(r.Context()),
	})
}

// handleGetConfig returns the active remote settings. The anon key is masked;
// it is a credential, not UI state.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	settings := s.provider.Settings(r.Context())
	writeJSON(w, http.StatusOK, configResponse{
		URL:        settings.URL,
		AnonKeySet: settings.Plausible(),
	})
}

// handlePutConfig persists new remote settings and invalidates the cached
// remote client, so the next remote operation uses the new credential.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var settings remote.Settings
	if err := decodeBody(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings = settings.Normalize()
	if err := s.provider.SaveSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, "saving remote settings failed")
		return
	}

	writeJSON(w, http.StatusOK, configResponse{
		URL:        settings.URL,
		AnonKeySet: settings.Plausible(),
	})
}
