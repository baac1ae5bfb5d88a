package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dept-site-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AuthEnvelope wraps login responses.
type AuthEnvelope struct {
	Bearer  string          `json:"Bearer,omitempty"`
	Account *domain.Account `json:"account,omitempty"`
}

// VerifiedEnvelope answers a code confirmation.
type VerifiedEnvelope struct {
	Verified bool `json:"verified"`
}

// PaginatedAccountsEnvelope wraps cursor-paginated account lists.
type PaginatedAccountsEnvelope struct {
	Data       []domain.Account `json:"data"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// FilesEnvelope lists file metadata.
type FilesEnvelope struct {
	Data []domain.File `json:"data"`
}

// RolesEnvelope lists roles, lowest first.
type RolesEnvelope struct {
	Roles []domain.Role `json:"roles"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
