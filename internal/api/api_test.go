package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quicknote/internal/session"
	"github.com/starford/quicknote/internal/sse"
	"github.com/starford/quicknote/internal/testutil"
)

// testEnv starts a session over a temp notes dir and returns its router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (http.Handler, string) {
	t.Helper()
	store, _, dir := testutil.Store(t)
	s := session.New(store, session.Config{Interval: time.Hour, FlushOnSwitch: true}, testutil.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})

	return NewRouter(s, authToken != "", authToken, nil), dir
}

func do(t *testing.T, h http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// createNote composes and confirms a note, returning its path.
func createNote(t *testing.T, h http.Handler, title string) string {
	t.Helper()
	if w := do(t, h, http.MethodPost, "/compose", nil); w.Code != http.StatusOK {
		t.Fatalf("compose = %d", w.Code)
	}
	w := do(t, h, http.MethodPost, "/compose/confirm", map[string]string{"title": title})
	if w.Code != http.StatusCreated {
		t.Fatalf("confirm = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ConfirmTitleResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Created || resp.Note == nil {
		t.Fatalf("resp = %+v", resp)
	}
	return resp.Note.Path
}

func active(t *testing.T, h http.Handler) ActiveResponse {
	t.Helper()
	w := do(t, h, http.MethodGet, "/active", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("active = %d", w.Code)
	}
	var a ActiveResponse
	_ = json.Unmarshal(w.Body.Bytes(), &a)
	return a
}

func TestStartsComposing(t *testing.T) {
	router, _ := testEnv(t, "")
	if a := active(t, router); a.Mode != "composing" {
		t.Errorf("mode = %q", a.Mode)
	}
}

func TestComposeEditFlushGet(t *testing.T) {
	router, dir := testEnv(t, "")
	p := createNote(t, router, "Groceries")
	if p != "20240601080000_Groceries.json" {
		t.Errorf("path = %q", p)
	}

	w := do(t, router, http.MethodPut, "/active/content", map[string]string{"path": p, "content": "milk, eggs"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("edit = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/flush", nil); w.Code != http.StatusNoContent {
		t.Fatalf("flush = %d", w.Code)
	}

	data, err := os.ReadFile(filepath.Join(dir, p))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"milk, eggs"`)) {
		t.Errorf("file = %s", data)
	}

	w = do(t, router, http.MethodGet, "/notes/"+p, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var n NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &n)
	if n.Title != "Groceries" || n.Content != "milk, eggs" {
		t.Errorf("note = %+v", n)
	}
}

func TestConfirmBlankTitle(t *testing.T) {
	router, _ := testEnv(t, "")
	_ = do(t, router, http.MethodPost, "/compose", nil)

	w := do(t, router, http.MethodPost, "/compose/confirm", map[string]string{"title": "   "})
	if w.Code != http.StatusOK {
		t.Fatalf("blank confirm = %d", w.Code)
	}
	var resp ConfirmTitleResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Created {
		t.Error("blank title created a note")
	}
	if a := active(t, router); a.Mode != "composing" {
		t.Errorf("mode = %q", a.Mode)
	}
}

func TestConfirmInvalidBody(t *testing.T) {
	router, _ := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/compose/confirm", bytes.NewBufferString("{nope"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestListNotesNewestFirst(t *testing.T) {
	router, _ := testEnv(t, "")
	a := createNote(t, router, "a")
	b := createNote(t, router, "b")

	w := do(t, router, http.MethodGet, "/notes", nil)
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || resp.Notes[0].Path != b || resp.Notes[1].Path != a {
		t.Errorf("list = %+v", resp)
	}
}

func TestSelectAndEditInactive(t *testing.T) {
	router, _ := testEnv(t, "")
	a := createNote(t, router, "a")
	b := createNote(t, router, "b")

	w := do(t, router, http.MethodPut, "/active", map[string]string{"path": a})
	if w.Code != http.StatusOK {
		t.Fatalf("select = %d", w.Code)
	}
	if got := active(t, router); got.Path != a || got.Mode != "editing" {
		t.Errorf("active = %+v", got)
	}

	w = do(t, router, http.MethodPut, "/active/content", map[string]string{"path": b, "content": "x"})
	if w.Code != http.StatusConflict {
		t.Errorf("edit inactive = %d, want 409", w.Code)
	}
}

func TestSelectValidation(t *testing.T) {
	router, _ := testEnv(t, "")
	for _, body := range []map[string]string{{"path": ""}, {"path": "../etc/passwd"}} {
		if w := do(t, router, http.MethodPut, "/active", body); w.Code != http.StatusBadRequest {
			t.Errorf("select %v = %d, want 400", body, w.Code)
		}
	}
	if w := do(t, router, http.MethodPut, "/active", map[string]string{"path": "20000101000000_x.json"}); w.Code != http.StatusNotFound {
		t.Errorf("select missing = %d, want 404", w.Code)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	router, _ := testEnv(t, "")
	a := createNote(t, router, "a")
	b := createNote(t, router, "b")

	w := do(t, router, http.MethodDelete, "/notes/"+b, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("unconfirmed delete = %d, want 409", w.Code)
	}
	w = do(t, router, http.MethodDelete, "/notes/"+b, nil, ConfirmHeader, "no")
	if w.Code != http.StatusConflict {
		t.Fatalf("declined delete = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodDelete, "/notes/"+b, nil, ConfirmHeader, "yes")
	if w.Code != http.StatusNoContent {
		t.Fatalf("confirmed delete = %d", w.Code)
	}
	if got := active(t, router); got.Path != a {
		t.Errorf("active after delete = %+v, want %s", got, a)
	}
	if w := do(t, router, http.MethodGet, "/notes/"+b, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d", w.Code)
	}
}

func TestForcedDeleteLastNote(t *testing.T) {
	router, _ := testEnv(t, "")
	a := createNote(t, router, "only")

	w := do(t, router, http.MethodDelete, "/notes/"+a+"?force=true", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("forced delete = %d", w.Code)
	}
	if got := active(t, router); got.Mode != "composing" {
		t.Errorf("mode = %q, want composing", got.Mode)
	}
}

func TestGetNote_Malformed(t *testing.T) {
	router, dir := testEnv(t, "")
	name := "20240101000000_bad.json"
	_ = os.WriteFile(filepath.Join(dir, name), []byte("{broken"), 0o644)

	if w := do(t, router, http.MethodGet, "/notes/"+name, nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/notes", nil, "Authorization", "Bearer secret123")
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/notes", nil, "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	store, _, _ := testutil.Store(t)
	s := session.New(store, session.Config{Interval: time.Hour}, testutil.Logger())
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)

	r := chi.NewRouter()
	r.Mount("/api", NewRouter(s, true, "tok", broker))

	w := do(t, r, http.MethodGet, "/api/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed events = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryTokenOnlyForGet(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes?access_token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}
	w := do(t, router, http.MethodPost, "/flush?access_token=secret123", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate challenge")
	}
}
