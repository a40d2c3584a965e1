// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes QuickNote tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quicknote/internal/apperr"
	"github.com/starford/quicknote/internal/models"
	"github.com/starford/quicknote/internal/selection"
)

// FormatURI is the resource URI of the note format description.
const FormatURI = "quicknote://note-format"

// Notes is the session surface the tools drive.
type Notes interface {
	List(ctx context.Context) ([]models.Summary, error)
	Load(ctx context.Context, path string) (models.Note, error)
	CreateNote(ctx context.Context, title, content string) (models.Note, error)
	WriteNote(ctx context.Context, path, content string) (models.Note, error)
	Delete(ctx context.Context, path string, forced bool, confirm selection.Confirmer) error
}

// Server wraps the MCP server with QuickNote tools.
type Server struct {
	mcp   *server.MCPServer
	notes Notes
}

// noteView is the JSON shape returned for a single note.
type noteView struct {
	Path    string    `json:"path"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// New creates a new MCP server with all QuickNote tools registered.
func New(notes Notes, version string) *Server {
	s := &Server{notes: notes}

	s.mcp = server.NewMCPServer(
		"QuickNote",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, newest first, as JSON objects with path and title."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note's title, content and timestamps."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note file name as returned by list_notes")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. The file name is derived from the current time and the title. "+
			"The new note becomes the active note."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Non-blank title")),
		mcp.WithString("content", mcp.Description("Initial plain-text content")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the content of an existing note and save it immediately. "+
			"The note becomes the active note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note file name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New plain-text content")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Permanently delete a note. Requires confirm=true unless force=true. "+
			"There is no undo."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note file name")),
		mcp.WithBoolean("confirm", mcp.Description("Answer yes to the confirmation prompt")),
		mcp.WithBoolean("force", mcp.Description("Skip the confirmation prompt")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Returns the QuickNote file format and naming rules."),
	), s.getNoteFormat)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Note Format",
			mcp.WithResourceDescription("On-disk JSON format and file naming of QuickNote notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrConfirmationRequired):
		return mcp.NewToolResultError("delete not confirmed: pass confirm=true or force=true")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func view(n models.Note) noteView {
	return noteView{Path: n.Path, Title: n.Title, Content: n.Content, Created: n.Created, Updated: n.Updated}
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.notes.List(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if items == nil {
		items = []models.Summary{}
	}
	return jsonResult(items), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.Load(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view(n)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := req.GetString("content", "")

	n, err := s.notes.CreateNote(ctx, title, content)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view(n)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.WriteNote(ctx, path, content)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view(n)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	forced := req.GetBool("force", false)
	answer := req.GetBool("confirm", false)
	confirm := selection.ConfirmFunc(func(string, string) bool { return answer })

	if err := s.notes.Delete(ctx, path, forced, confirm); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", path)), nil
}

func (s *Server) getNoteFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormat), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormat,
		},
	}, nil
}
