package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/steveyegge/contacts/internal/contact"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error  string               `json:"error"`
	Code   string               `json:"code"`
	Fields []contact.FieldError `json:"fields,omitempty"`
}

// DeleteResponse is the body of a successful delete.
type DeleteResponse struct {
	Message   string `json:"message"`
	ContactID string `json:"contactId"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.decodeBody(w, r)
	if !ok {
		return
	}

	// contactId and createdAt are assigned by the store.
	c, err := contact.ParseCreate(raw)
	if err != nil {
		s.writeError(w, err)
		return
	}

	created, err := s.db.CreateContext(r.Context(), c)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.ContactChanged(r.Context(), ActionCreated, created.ContactID, created.Name)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.query.Search(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.db.GetContext(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.decodeBody(w, r)
	if !ok {
		return
	}

	patch, err := contact.ParsePatch(raw)
	if err != nil {
		s.writeError(w, err)
		return
	}

	updated, err := s.db.UpdateContext(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.ContactChanged(r.Context(), ActionUpdated, updated.ContactID, updated.Name)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	removed, err := s.db.DeleteContext(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !removed {
		s.writeError(w, fmt.Errorf("%w: %s", contact.ErrNotFound, id))
		return
	}

	s.ContactChanged(r.Context(), ActionDeleted, id, "")
	writeJSON(w, http.StatusOK, DeleteResponse{Message: "Contact deleted", ContactID: id})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.query.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// decodeBody reads a JSON object. Numbers are kept as json.Number so the
// validator sees the literal the client sent.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid JSON body: " + err.Error(),
			Code:  "bad_request",
		})
		return nil, false
	}
	if raw == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "request body must be a JSON object",
			Code:  "bad_request",
		})
		return nil, false
	}
	return raw, true
}

// writeError maps the error taxonomy onto status codes. Storage failures are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *contact.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  verr.Error(),
			Code:   "validation_error",
			Fields: verr.Fields,
		})
	case errors.Is(err, contact.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "contact not found", Code: "not_found"})
	case errors.Is(err, contact.ErrDuplicateKey):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "duplicate_key"})
	case errors.Is(err, contact.ErrMalformedDocument):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "malformed_document"})
	default:
		s.logger.Printf("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "storage error", Code: "storage_error"})
	}
}
