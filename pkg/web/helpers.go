package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	// Handle nil payload
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, map[string]string{"error": message})
}

// ParseID extracts and validates a UUID path value. Returns the ID and a boolean indicating success.
func ParseID(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string) (uuid.UUID, bool) {
	pathValueID := r.PathValue(key)
	id, err := uuid.Parse(pathValueID)
	if err != nil {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid ID: %s", pathValueID))
		return uuid.UUID{}, false
	}
	return id, true
}

// ParseIndex extracts a non-negative integer path value.
func ParseIndex(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string) (int, bool) {
	raw := r.PathValue(key)
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %s", key, raw))
		return 0, false
	}
	return index, true
}

// SessionIDFromRequest retrieves the session ID placed in the context by SessionMiddleware.
func SessionIDFromRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	sessionID, ok := GetSessionID(r.Context())
	if !ok {
		RespondError(w, logger, http.StatusUnauthorized, "Unauthorized: Missing or invalid session ID")
		return "", false
	}
	return sessionID, true
}
