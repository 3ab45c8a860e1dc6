package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"grannypad/internal/todo"
)

func TestSaveAndFetchKeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notepad.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	tasks := []todo.Task{
		{ID: "c", Text: "Water plants"},
		{ID: "a", Text: "Buy milk", Due: todo.ParseDate("2024-01-02")},
		{ID: "b", Text: "Call mom", Completed: true},
	}
	if err := store.SaveTasks(tasks); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.FetchTasks()
	if err != nil {
		t.Fatalf("FetchTasks: %v", err)
	}
	if len(got) != len(tasks) {
		t.Fatalf("got %d tasks, want %d", len(got), len(tasks))
	}
	for i := range tasks {
		if got[i].ID != tasks[i].ID || got[i].Text != tasks[i].Text || got[i].Completed != tasks[i].Completed {
			t.Fatalf("task %d = %+v, want %+v", i, got[i], tasks[i])
		}
		if todo.FormatDate(got[i].Due) != todo.FormatDate(tasks[i].Due) {
			t.Fatalf("task %d due = %v, want %v", i, got[i].Due, tasks[i].Due)
		}
	}
}

func TestSaveReplacesSnapshot(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "notepad.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if err := store.SaveTasks([]todo.Task{{ID: "a", Text: "one"}, {ID: "b", Text: "two"}}); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}
	if err := store.SaveTasks([]todo.Task{{ID: "b", Text: "two"}}); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}
	got, err := store.FetchTasks()
	if err != nil {
		t.Fatalf("FetchTasks: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestOpenRefusesSecondInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notepad.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer first.Close()

	if _, err := Open(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := sqliteDSN("file:memdb?mode=memory"); got != "file:memdb?mode=memory" {
		t.Fatalf("unexpected passthrough %q", got)
	}
	got := sqliteDSN("/tmp/notes.db")
	if !strings.HasPrefix(got, "file:///tmp/notes.db?") || !strings.Contains(got, "mode=rwc") {
		t.Fatalf("unexpected dsn %q", got)
	}
}
