package models

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestNewPath(t *testing.T) {
	created := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	got := NewPath(created, "  Weekly plan  ")
	if got != "20240309140507_Weekly_plan.json" {
		t.Errorf("path = %q", got)
	}
}

func TestNewPath_SortsByCreation(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	paths := []string{
		NewPath(base.Add(2*time.Second), "alpha"),
		NewPath(base, "zulu"),
		NewPath(base.Add(time.Hour), "mike"),
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	if !strings.Contains(paths[0], "mike") || !strings.Contains(paths[2], "zulu") {
		t.Errorf("order = %v", paths)
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := map[string]string{
		"Groceries":        "Groceries",
		"two words":        "two_words",
		"tab\there":        "tab_here",
		"../etc/passwd":    "..-etc-passwd",
		`c:\windows`:       "c--windows",
		"line\x00break":    "line-break",
		" padded title   ": "padded_title",
	}
	for in, want := range cases {
		if got := SanitizeTitle(in); got != want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithSuffix(t *testing.T) {
	if got := WithSuffix("20240101000000_a.json", 2); got != "20240101000000_a_2.json" {
		t.Errorf("got %q", got)
	}
}

func TestEncodeDecode(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	n := Note{Title: "Groceries", Content: "milk, eggs", Created: created, Updated: created.Add(time.Minute)}
	data, err := Encode(n)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	if len(fields) != 4 {
		t.Errorf("encoded fields = %v, want exactly 4", fields)
	}

	got, err := Decode("x.json", data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Path != "x.json" || got.Title != n.Title || got.Content != n.Content {
		t.Errorf("decoded = %+v", got)
	}
	if !got.Created.Equal(n.Created) || !got.Updated.Equal(n.Updated) {
		t.Errorf("timestamps = %v / %v", got.Created, got.Updated)
	}
}

func TestDecode_MissingFieldsUseDefaults(t *testing.T) {
	got, err := Decode("a.json", []byte(`{"created":"2024-01-01T10:00:00"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Title != DefaultTitle {
		t.Errorf("title = %q", got.Title)
	}
	if got.Content != "" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Created.IsZero() {
		t.Error("naive ISO timestamp should parse")
	}
	if !got.Updated.IsZero() {
		t.Error("missing updated should stay zero")
	}
}

func TestDecode_EmptyTitleKept(t *testing.T) {
	got, err := Decode("a.json", []byte(`{"title":"","content":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "" {
		t.Errorf("explicit empty title replaced with %q", got.Title)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{`not json`, `[1,2]`, `{"title": 5}`, ``, `null`, ` null `} {
		if _, err := Decode("bad.json", []byte(raw)); err == nil {
			t.Errorf("Decode(%q) should fail", raw)
		} else {
			var syn *json.SyntaxError
			var typ *json.UnmarshalTypeError
			if raw != "" && !errors.As(err, &syn) && !errors.As(err, &typ) && !errors.Is(err, ErrNotObject) {
				t.Errorf("unexpected error type for %q: %v", raw, err)
			}
		}
	}
}
