package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/quicknote/internal/models"
	"github.com/starford/quicknote/internal/session"
	"github.com/starford/quicknote/internal/testutil"
)

func testServer(t *testing.T) (*Server, *session.Session) {
	t.Helper()
	store, _, _ := testutil.Store(t)
	s := session.New(store, session.Config{Interval: time.Hour, FlushOnSwitch: true}, testutil.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return New(s, "test"), s
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper; call the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "update_note":
		result, err = srv.updateNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	case "get_note_format":
		result, err = srv.getNoteFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodeNote(t *testing.T, r *mcp.CallToolResult) noteView {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	var v noteView
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return v
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	created := decodeNote(t, callTool(t, srv, "create_note", map[string]any{
		"title":   "Test",
		"content": "Hello",
	}))
	if created.Path != "20240601080000_Test.json" || created.Content != "Hello" {
		t.Errorf("created = %+v", created)
	}

	got := decodeNote(t, callTool(t, srv, "read_note", map[string]any{"path": created.Path}))
	if got.Title != "Test" || got.Content != "Hello" {
		t.Errorf("read = %+v", got)
	}
}

func TestCreateNoteBlankTitle(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_note", map[string]any{"title": "  "})
	if !r.IsError {
		t.Error("expected error for blank title")
	}
}

func TestListNotes(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_notes", map[string]any{})
	if text := resultText(r); text != "[]" {
		t.Errorf("empty list = %q", text)
	}

	_ = callTool(t, srv, "create_note", map[string]any{"title": "a"})
	_ = callTool(t, srv, "create_note", map[string]any{"title": "b"})

	var items []models.Summary
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "list_notes", map[string]any{}))), &items)
	if len(items) != 2 || items[0].Title != "b" {
		t.Errorf("list = %+v", items)
	}
}

func TestUpdateNote(t *testing.T) {
	srv, s := testServer(t)
	created := decodeNote(t, callTool(t, srv, "create_note", map[string]any{"title": "Draft"}))

	updated := decodeNote(t, callTool(t, srv, "update_note", map[string]any{
		"path":    created.Path,
		"content": "final text",
	}))
	if updated.Content != "final text" {
		t.Errorf("content = %q", updated.Content)
	}
	st, _ := s.State(context.Background())
	if st.Path != created.Path || st.Content != "final text" {
		t.Errorf("session state = %+v", st)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]any{"path": "20000101000000_nope.json"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestDeleteNoteConfirmation(t *testing.T) {
	srv, _ := testServer(t)
	created := decodeNote(t, callTool(t, srv, "create_note", map[string]any{"title": "Doomed"}))

	r := callTool(t, srv, "delete_note", map[string]any{"path": created.Path})
	if !r.IsError || !strings.Contains(resultText(r), "confirm") {
		t.Errorf("unconfirmed delete = %q", resultText(r))
	}

	r = callTool(t, srv, "delete_note", map[string]any{"path": created.Path, "confirm": true})
	if r.IsError {
		t.Fatalf("confirmed delete: %s", resultText(r))
	}
	if r := callTool(t, srv, "read_note", map[string]any{"path": created.Path}); !r.IsError {
		t.Error("note still readable after delete")
	}
}

func TestDeleteNoteForced(t *testing.T) {
	srv, _ := testServer(t)
	created := decodeNote(t, callTool(t, srv, "create_note", map[string]any{"title": "Gone"}))

	r := callTool(t, srv, "delete_note", map[string]any{"path": created.Path, "force": true})
	if r.IsError {
		t.Fatalf("forced delete: %s", resultText(r))
	}
}

func TestGetNoteFormat(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_note_format", nil))
	if !strings.Contains(text, "YYYYMMDDHHMMSS_<title>.json") {
		t.Error("format description missing file naming")
	}
}
