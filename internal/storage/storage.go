// Package storage keeps an optional snapshot of the notepad in SQLite so a
// list can survive a restart when db_path is configured.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"grannypad/internal/todo"
)

// ErrLocked is returned by Open when another grannypad holds the snapshot.
var ErrLocked = errors.New("snapshot is in use by another grannypad")

type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}

	lock := flock.New(dbPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, lock: lock}
	if err := s.ensureSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
	}
	return errors.Join(errs...)
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	due TEXT DEFAULT NULL
);`
	_, err := s.db.Exec(ddl)
	return err
}

// FetchTasks returns the snapshot in the order it was saved.
func (s *Store) FetchTasks() ([]todo.Task, error) {
	rows, err := s.db.Query(`SELECT id, text, completed, due FROM tasks ORDER BY position;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []todo.Task
	for rows.Next() {
		var t todo.Task
		var completed int
		var due sql.NullString
		if err := rows.Scan(&t.ID, &t.Text, &completed, &due); err != nil {
			return nil, err
		}
		t.Completed = completed == 1
		if due.Valid {
			t.Due = todo.ParseDate(due.String)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SaveTasks replaces the snapshot with tasks, keeping their order.
func (s *Store) SaveTasks(tasks []todo.Task) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM tasks;`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO tasks (id, position, text, completed, due) VALUES (?, ?, ?, ?, ?);`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range tasks {
		done := 0
		if t.Completed {
			done = 1
		}
		due := sql.NullString{}
		if t.Due.Valid {
			due = sql.NullString{String: todo.FormatDate(t.Due), Valid: true}
		}
		if _, err := stmt.Exec(t.ID, i, t.Text, done, due); err != nil {
			return fmt.Errorf("save task %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
