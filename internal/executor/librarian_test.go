package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stagehand-ai/stagehand/pkg/models"
)

func newTestLibrarian(t *testing.T) (*Librarian, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}
	l := NewLibrarian(root, time.Second, time.Minute)
	t.Cleanup(func() { l.Close() })
	return l, root
}

func TestLibrarianDirectoryStructure(t *testing.T) {
	l, _ := newTestLibrarian(t)

	outcome := l.ProcessTask(context.Background(), models.TaskRequest{
		Description: "get_directory_structure",
	})
	if !outcome.Success() {
		t.Fatalf("expected success, got %s: %s", outcome.Kind, outcome.ErrorMessage)
	}

	listing, err := l.DirectoryStructure()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(listing, filepath.Join("src", "main.go")) {
		t.Errorf("expected listing to contain src/main.go, got:\n%s", listing)
	}
}

func TestLibrarianReadFile(t *testing.T) {
	l, _ := newTestLibrarian(t)

	outcome := l.ProcessTask(context.Background(), models.TaskRequest{
		Description:     "read_file",
		RequiredContext: []string{filepath.Join("src", "main.go")},
	})
	if !outcome.Success() {
		t.Fatalf("expected success, got %s: %s", outcome.Kind, outcome.ErrorMessage)
	}
	if len(outcome.OutputFiles) != 1 || outcome.OutputFiles[0] != filepath.Join("src", "main.go") {
		t.Errorf("expected read path as output file, got %v", outcome.OutputFiles)
	}
}

func TestLibrarianReadFileNoPath(t *testing.T) {
	l, _ := newTestLibrarian(t)

	outcome := l.ProcessTask(context.Background(), models.TaskRequest{
		Description: "read_file",
	})
	if outcome.Success() {
		t.Fatal("expected error outcome")
	}
	if !strings.Contains(outcome.ErrorMessage, "No file path provided") {
		t.Errorf("unexpected error message: %q", outcome.ErrorMessage)
	}
}

func TestLibrarianUnknownTask(t *testing.T) {
	l, _ := newTestLibrarian(t)

	outcome := l.ProcessTask(context.Background(), models.TaskRequest{
		Description: "write_file src/main.go",
	})
	if outcome.Success() {
		t.Fatal("expected error outcome for unknown task")
	}
	if outcome.Kind != models.ErrKindUnknownTask {
		t.Errorf("expected unknown-task kind, got %s", outcome.Kind)
	}
	if !strings.Contains(outcome.ErrorMessage, "Unknown task type: write_file src/main.go") {
		t.Errorf("unexpected error message: %q", outcome.ErrorMessage)
	}
}

func TestLibrarianNeverWrites(t *testing.T) {
	l, root := newTestLibrarian(t)

	before, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}

	l.ProcessTask(context.Background(), models.TaskRequest{Description: "get_directory_structure"})
	l.ProcessTask(context.Background(), models.TaskRequest{
		Description:     "read_file",
		RequiredContext: []string{filepath.Join("src", "main.go")},
	})

	after, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Errorf("expected no files created, before=%d after=%d", len(before), len(after))
	}
}

func TestLibrarianCacheServesStaleWithinTTL(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}

	// No watcher interference: construct, read, close, then mutate.
	l := NewLibrarian(root, time.Second, time.Hour)
	first, err := l.ReadFile("notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Close()

	if err := os.WriteFile(path, []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}
	second, err := l.ReadFile("notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected cached content within TTL, got %q then %q", first, second)
	}
}
