package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quicknote/internal/models"
	"github.com/starford/quicknote/internal/selection"
)

// ConfirmHeader carries the answer to the delete confirmation prompt.
const ConfirmHeader = "X-Confirm-Delete"

// Notes is the session surface the handlers drive.
type Notes interface {
	List(ctx context.Context) ([]models.Summary, error)
	Load(ctx context.Context, path string) (models.Note, error)
	State(ctx context.Context) (selection.State, error)
	Compose(ctx context.Context) error
	ConfirmTitle(ctx context.Context, title string) (models.Note, bool, error)
	Select(ctx context.Context, path string) error
	Edit(ctx context.Context, path, content string) error
	Delete(ctx context.Context, path string, forced bool, confirm selection.Confirmer) error
	Flush(ctx context.Context) error
}

// Handler holds API route handlers.
type Handler struct {
	notes Notes
}

// NewHandler creates a new Handler.
func NewHandler(notes Notes) *Handler {
	return &Handler{notes: notes}
}

// notePath extracts the note file name from the URL (everything after /api/notes/).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, newest first
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	items, err := h.notes.List(r.Context())
	if err != nil {
		writeError(w, "list notes", "", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by file name
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note file name"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	n, err := h.notes.Load(r.Context(), path)
	if err != nil {
		writeError(w, "get note", path, err)
		return
	}
	writeJSON(w, http.StatusOK, noteDetail(n))
}

// DeleteNote handles DELETE /api/notes/*.
//
// With force=true the note is removed at once. Otherwise the request must
// answer the confirmation prompt with the X-Confirm-Delete: yes header; any
// other answer leaves the note in place and yields 409.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			path				path	string	true	"Note file name"
//	@Param			force				query	bool	false	"Skip confirmation"
//	@Param			X-Confirm-Delete	header	string	false	"yes to confirm"
//	@Success		204		"Note deleted"
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	forced, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	answer := strings.EqualFold(strings.TrimSpace(r.Header.Get(ConfirmHeader)), "yes")
	confirm := selection.ConfirmFunc(func(string, string) bool { return answer })

	if err := h.notes.Delete(r.Context(), path, forced, confirm); err != nil {
		writeError(w, "delete note", path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Compose handles POST /api/compose.
//
//	@Summary		Start composing a new note
//	@Tags			session
//	@Produce		json
//	@Success		200		{object}	ActiveResponse
//	@Security		BearerAuth
//	@Router			/compose [post]
func (h *Handler) Compose(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Compose(r.Context()); err != nil {
		writeError(w, "compose", "", err)
		return
	}
	h.Active(w, r)
}

// ConfirmTitle handles POST /api/compose/confirm.
//
// A blank title leaves the session composing and reports created=false.
//
//	@Summary		Create the note being composed
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConfirmTitleRequest	true	"Title"
//	@Success		200		{object}	ConfirmTitleResponse
//	@Success		201		{object}	ConfirmTitleResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/compose/confirm [post]
func (h *Handler) ConfirmTitle(w http.ResponseWriter, r *http.Request) {
	var req ConfirmTitleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, created, err := h.notes.ConfirmTitle(r.Context(), req.Title)
	if err != nil {
		writeError(w, "confirm title", "", err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, ConfirmTitleResponse{Created: false})
		return
	}
	d := noteDetail(n)
	slog.Info("note created", slog.String("path", n.Path))
	writeJSON(w, http.StatusCreated, ConfirmTitleResponse{Created: true, Note: &d})
}

// Active handles GET /api/active.
//
//	@Summary		Current selection and editor buffer
//	@Tags			session
//	@Produce		json
//	@Success		200		{object}	ActiveResponse
//	@Security		BearerAuth
//	@Router			/active [get]
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	st, err := h.notes.State(r.Context())
	if err != nil {
		writeError(w, "active", "", err)
		return
	}
	writeJSON(w, http.StatusOK, activeResponse(st))
}

// Select handles PUT /api/active.
//
//	@Summary		Make a note active
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectRequest	true	"Note to activate"
//	@Success		200		{object}	ActiveResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/active [put]
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.notes.Select(r.Context(), req.Path); err != nil {
		writeError(w, "select", req.Path, err)
		return
	}
	h.Active(w, r)
}

// Edit handles PUT /api/active/content.
//
// The buffer is persisted by the next autosave tick, or at once via
// POST /api/flush.
//
//	@Summary		Replace the active note's editor buffer
//	@Tags			session
//	@Accept			json
//	@Param			body	body		EditRequest	true	"Buffer"
//	@Success		204		"Buffer replaced"
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/active/content [put]
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.notes.Edit(r.Context(), req.Path, req.Content); err != nil {
		writeError(w, "edit", req.Path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Flush handles POST /api/flush.
//
//	@Summary		Persist the active buffer now
//	@Tags			session
//	@Success		204		"Flushed"
//	@Security		BearerAuth
//	@Router			/flush [post]
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Flush(r.Context()); err != nil {
		writeError(w, "flush", "", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
