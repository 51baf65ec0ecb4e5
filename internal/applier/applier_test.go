package applier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/sokinpui/snipsync/internal/fs"
	"github.com/sokinpui/snipsync/model"
)

// ignoreDetail compares outcomes on path, kind and error kind only.
var ignoreDetail = cmpopts.IgnoreFields(model.EditOutcome{}, "Detail")

func newTestApplier(t *testing.T, opts ...Option) (*Applier, string) {
	t.Helper()
	root, err := fs.NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewRoot failed: %v", err)
	}
	return New(fs.NewWriter(root), opts...), root.Dir()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func hashOf(t *testing.T, path string) string {
	t.Helper()
	h, err := fs.GetFileSHA256(path)
	if err != nil {
		t.Fatalf("hash %s: %v", path, err)
	}
	return h
}

func TestApplyEditScenario(t *testing.T) {
	a, dir := newTestApplier(t)
	path := writeFile(t, dir, "add.py", "def add(a, b):\n    return a + b\n")

	outcomes, err := a.Apply(context.Background(), model.StructuredReply{
		AssistantReply: "Fixed it.",
		FilesToEdit: []model.FileEdit{{
			Path:            "add.py",
			OriginalSnippet: "return a + b",
			NewSnippet:      "return a + b  # fixed",
		}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	want := []model.EditOutcome{{Path: "add.py", Kind: model.Edited}}
	if diff := cmp.Diff(want, outcomes); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if got := readFile(t, path); got != "def add(a, b):\n    return a + b  # fixed\n" {
		t.Errorf("content = %q", got)
	}
}

func TestApplyRoundTrip(t *testing.T) {
	contents := map[string]string{
		"lf.go":   "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n",
		"crlf.go": "package main\r\n\r\nfunc main() {\r\n\tprintln(\"hi\")\r\n}\r\n",
	}
	for name, original := range contents {
		t.Run(name, func(t *testing.T) {
			a, dir := newTestApplier(t)
			path := writeFile(t, dir, name, original)

			forward := model.FileEdit{Path: name, OriginalSnippet: "println(\"hi\")", NewSnippet: "println(\"bye\")"}
			backward := model.FileEdit{Path: name, OriginalSnippet: forward.NewSnippet, NewSnippet: forward.OriginalSnippet}

			for _, e := range []model.FileEdit{forward, backward} {
				outcomes, err := a.Apply(context.Background(), model.StructuredReply{FilesToEdit: []model.FileEdit{e}})
				if err != nil {
					t.Fatalf("Apply failed: %v", err)
				}
				if outcomes[0].Kind != model.Edited {
					t.Fatalf("edit %+v failed: %+v", e, outcomes[0])
				}
			}
			if got := readFile(t, path); got != original {
				t.Errorf("round trip changed content:\n got %q\nwant %q", got, original)
			}
		})
	}
}

func TestApplyLeavesFileUntouchedOnLocateFailure(t *testing.T) {
	tests := []struct {
		name    string
		content string
		snippet string
		wantErr model.ErrorKind
	}{
		{name: "not found", content: "a\nb\n", snippet: "c", wantErr: model.SnippetNotFound},
		{name: "ambiguous", content: "x()\nx()\n", snippet: "x()", wantErr: model.AmbiguousSnippet},
		{name: "ambiguous after normalization", content: "x() \nx()\t\n", snippet: "x()\n", wantErr: model.AmbiguousSnippet},
		{name: "empty snippet", content: "a\n", snippet: "", wantErr: model.EmptySnippet},
		{name: "trailing blank inside a longer line", content: "limit = 10\n", snippet: "limit = 1 ", wantErr: model.SnippetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, dir := newTestApplier(t)
			path := writeFile(t, dir, "f.txt", tt.content)
			before := hashOf(t, path)

			outcomes, err := a.Apply(context.Background(), model.StructuredReply{
				FilesToEdit: []model.FileEdit{{Path: "f.txt", OriginalSnippet: tt.snippet, NewSnippet: "NEW"}},
			})
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			want := []model.EditOutcome{{Path: "f.txt", Kind: model.Failed, Err: tt.wantErr}}
			if diff := cmp.Diff(want, outcomes, ignoreDetail); diff != "" {
				t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
			}
			if outcomes[0].Detail == "" {
				t.Errorf("failed outcome has no detail")
			}
			if after := hashOf(t, path); after != before {
				t.Errorf("file content changed")
			}
		})
	}
}

func TestApplyEditMissingFile(t *testing.T) {
	a, dir := newTestApplier(t)

	outcomes, err := a.Apply(context.Background(), model.StructuredReply{
		FilesToEdit: []model.FileEdit{{Path: "ghost.txt", OriginalSnippet: "a", NewSnippet: "b"}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := []model.EditOutcome{{Path: "ghost.txt", Kind: model.Failed, Err: model.FileNotFound}}
	if diff := cmp.Diff(want, outcomes, ignoreDetail); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, "ghost.txt")); !os.IsNotExist(err) {
		t.Errorf("edit created the missing file")
	}
}

func TestApplyBatchPartialFailure(t *testing.T) {
	a, dir := newTestApplier(t)

	outcomes, err := a.Apply(context.Background(), model.StructuredReply{
		FilesToCreate: []model.FileCreation{
			{Path: "../outside.txt", Content: "nope"},
			{Path: "inside.txt", Content: "yes"},
		},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	want := []model.EditOutcome{
		{Path: "../outside.txt", Kind: model.Failed, Err: model.PathEscapesRoot},
		{Path: "inside.txt", Kind: model.Created},
	}
	if diff := cmp.Diff(want, outcomes, ignoreDetail); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if got := readFile(t, filepath.Join(dir, "inside.txt")); got != "yes" {
		t.Errorf("inside.txt = %q", got)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "outside.txt")); !os.IsNotExist(err) {
		t.Errorf("outside.txt was written")
	}
}

func TestApplyCreationsBeforeEdits(t *testing.T) {
	a, dir := newTestApplier(t)

	outcomes, err := a.Apply(context.Background(), model.StructuredReply{
		FilesToCreate: []model.FileCreation{
			{Path: "pkg/a/b/new.go", Content: "package b\n\nconst X = 1\n"},
		},
		FilesToEdit: []model.FileEdit{
			{Path: "pkg/a/b/new.go", OriginalSnippet: "const X = 1", NewSnippet: "const X = 2"},
			{Path: "pkg/a/b/new.go", OriginalSnippet: "package b", NewSnippet: "package c"},
		},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	want := []model.EditOutcome{
		{Path: "pkg/a/b/new.go", Kind: model.Created},
		{Path: "pkg/a/b/new.go", Kind: model.Edited},
		{Path: "pkg/a/b/new.go", Kind: model.Edited},
	}
	if diff := cmp.Diff(want, outcomes); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if got := readFile(t, filepath.Join(dir, "pkg", "a", "b", "new.go")); got != "package c\n\nconst X = 2\n" {
		t.Errorf("content = %q", got)
	}
}

func TestApplyOverwritesOnCreate(t *testing.T) {
	a, dir := newTestApplier(t)
	path := writeFile(t, dir, "x.txt", "old content that is longer")

	if _, err := a.Apply(context.Background(), model.StructuredReply{
		FilesToCreate: []model.FileCreation{{Path: "x.txt", Content: "new"}},
	}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := readFile(t, path); got != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
}

func TestApplyEmptyReply(t *testing.T) {
	a, _ := newTestApplier(t)
	outcomes, err := a.Apply(context.Background(), model.StructuredReply{AssistantReply: "just talking"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %+v", outcomes)
	}
}

func TestApplyCancelledBetweenItems(t *testing.T) {
	a, dir := newTestApplier(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := a.Apply(ctx, model.StructuredReply{
		FilesToCreate: []model.FileCreation{{Path: "a.txt", Content: "a"}},
		FilesToEdit:   []model.FileEdit{{Path: "a.txt", OriginalSnippet: "a", NewSnippet: "b"}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := []model.EditOutcome{
		{Path: "a.txt", Kind: model.Failed, Err: model.Cancelled},
		{Path: "a.txt", Kind: model.Failed, Err: model.Cancelled},
	}
	if diff := cmp.Diff(want, outcomes, ignoreDetail); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); !os.IsNotExist(err) {
		t.Errorf("cancelled creation was written")
	}
}

func TestApplyExtensionFilter(t *testing.T) {
	a, dir := newTestApplier(t, WithExtensions([]string{".go"}))

	outcomes, err := a.Apply(context.Background(), model.StructuredReply{
		FilesToCreate: []model.FileCreation{
			{Path: "main.go", Content: "package main\n"},
			{Path: "notes.md", Content: "# notes\n"},
		},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := []model.EditOutcome{{Path: "main.go", Kind: model.Created}}
	if diff := cmp.Diff(want, outcomes); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.md")); !os.IsNotExist(err) {
		t.Errorf("filtered file was written")
	}
}

func TestApplyFailsWhenRootIsGone(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "root")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	root, err := fs.NewRoot(dir)
	if err != nil {
		t.Fatalf("NewRoot failed: %v", err)
	}
	a := New(fs.NewWriter(root))
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	if _, err := a.Apply(context.Background(), model.StructuredReply{
		FilesToCreate: []model.FileCreation{{Path: "a.txt", Content: "a"}},
	}); err == nil {
		t.Fatal("expected whole-call error for missing root")
	}
}
