// Package sqlite stores students and grades in a single SQLite file using the
// pure Go modernc driver. It serves local runs and the CLI without a server.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/JonMunkholm/grades/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const (
	dateLayout = "2006-01-02"

	// maxLookup keeps IN (...) lists well under SQLITE_MAX_VARIABLE_NUMBER.
	maxLookup = 500

	insertStudentSQL = `INSERT INTO students (full_name, group_name) VALUES (?, ?) ON CONFLICT (full_name) DO NOTHING`
	insertGradeSQL   = `INSERT INTO grades (student_id, grade_date, grade) VALUES (?, ?, ?)`

	twosSQL = `SELECT s.full_name, t.count_twos
FROM (
    SELECT g.student_id, COUNT(*) AS count_twos
    FROM grades g
    WHERE g.grade = ?
    GROUP BY g.student_id
    HAVING COUNT(*) %s ?
) t
JOIN students s ON s.id = t.student_id
ORDER BY t.count_twos DESC, s.full_name`
)

var resetSQL = []string{
	`DELETE FROM grades`,
	`DELETE FROM students`,
	`DELETE FROM sqlite_sequence WHERE name IN ('grades', 'students')`,
}

var (
	moreTwosSQL  = fmt.Sprintf(twosSQL, ">")
	fewerTwosSQL = fmt.Sprintf(twosSQL, "<")
)

// Store implements core.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ core.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "grades.db"
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	// Pragmas in the DSN are applied by the driver to every new connection.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer, and every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset deletes every grade and student and restarts the id counters.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range resetSQL {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn in one transaction, committing only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) UpsertStudents(ctx context.Context, students []core.Student) (map[string]int64, error) {
	stmt, err := t.tx.PrepareContext(ctx, insertStudentSQL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stmt.Close() }()

	names := make([]string, len(students))
	for i, st := range students {
		if _, err := stmt.ExecContext(ctx, st.FullName, st.Group); err != nil {
			return nil, fmt.Errorf("insert student %q: %w", st.FullName, err)
		}
		names[i] = st.FullName
	}

	ids := make(map[string]int64, len(students))
	for start := 0; start < len(names); start += maxLookup {
		if err := t.lookupIDs(ctx, names[start:min(start+maxLookup, len(names))], ids); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (t *txStore) lookupIDs(ctx context.Context, names []string, into map[string]int64) error {
	query := "SELECT id, full_name FROM students WHERE full_name IN (?" + strings.Repeat(", ?", len(names)-1) + ")"
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("scan student ids: %w", err)
		}
		into[name] = id
	}
	return rows.Err()
}

func (t *txStore) InsertGrades(ctx context.Context, grades []core.Grade) (int64, error) {
	stmt, err := t.tx.PrepareContext(ctx, insertGradeSQL)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	var n int64
	for _, g := range grades {
		if _, err := stmt.ExecContext(ctx, g.StudentID, g.Date.Format(dateLayout), g.Value); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// StudentsWithMoreTwos lists students with more than n grades of 2.
func (s *Store) StudentsWithMoreTwos(ctx context.Context, n int) ([]core.StudentTwos, error) {
	return s.twos(ctx, moreTwosSQL, n)
}

// StudentsWithFewerTwos lists students with at least one and fewer than n grades of 2.
func (s *Store) StudentsWithFewerTwos(ctx context.Context, n int) ([]core.StudentTwos, error) {
	return s.twos(ctx, fewerTwosSQL, n)
}

func (s *Store) twos(ctx context.Context, query string, n int) ([]core.StudentTwos, error) {
	rows, err := s.db.QueryContext(ctx, query, core.TwoGrade, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []core.StudentTwos{}
	for rows.Next() {
		var st core.StudentTwos
		if err := rows.Scan(&st.FullName, &st.CountTwos); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
