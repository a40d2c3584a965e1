package api

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quicknote/internal/models"
	"github.com/starford/quicknote/internal/selection"
)

// maxTitleLen caps titles accepted over HTTP; longer names break most filesystems.
const maxTitleLen = 200

// NoteDetail is the full note response type.
type NoteDetail struct {
	Path    string    `json:"path" example:"20240601080000_Groceries.json"`
	Title   string    `json:"title" example:"Groceries"`
	Content string    `json:"content" example:"milk, eggs"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

func noteDetail(n models.Note) NoteDetail {
	return NoteDetail{Path: n.Path, Title: n.Title, Content: n.Content, Created: n.Created, Updated: n.Updated}
}

// NoteListResponse wraps the ordered note list.
type NoteListResponse struct {
	Notes []models.Summary `json:"notes"`
	Total int              `json:"total" example:"3"`
}

// ActiveResponse describes the selection state and live buffer.
type ActiveResponse struct {
	Mode    string `json:"mode" example:"editing"`
	Path    string `json:"path,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

func activeResponse(st selection.State) ActiveResponse {
	return ActiveResponse{Mode: st.Mode.String(), Path: st.Path, Title: st.Title, Content: st.Content}
}

// ConfirmTitleRequest names the note being composed.
type ConfirmTitleRequest struct {
	Title string `json:"title" example:"Groceries"`
}

// Validate checks the request shape. A blank title is allowed here and
// handled as a no-op by the session.
func (r ConfirmTitleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.RuneLength(0, maxTitleLen)),
	)
}

// ConfirmTitleResponse reports whether a note was created.
type ConfirmTitleResponse struct {
	Created bool        `json:"created"`
	Note    *NoteDetail `json:"note,omitempty"`
}

// SelectRequest picks the active note.
type SelectRequest struct {
	Path string `json:"path" example:"20240601080000_Groceries.json"`
}

// Validate validates the request.
func (r SelectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required, validation.By(noSeparators)),
	)
}

// EditRequest replaces the editor buffer of the active note.
type EditRequest struct {
	Path    string `json:"path" example:"20240601080000_Groceries.json"`
	Content string `json:"content" example:"milk, eggs"`
}

// Validate validates the request. Empty content is a legitimate edit.
func (r EditRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required, validation.By(noSeparators)),
	)
}

func noSeparators(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, `/\`) {
		return validation.NewError("validation_path_flat", "must be a file name")
	}
	return nil
}
