// Package postgres stores students and grades in PostgreSQL through pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/grades/internal/config"
	"github.com/JonMunkholm/grades/internal/core"
)

//go:embed schema.sql
var schemaSQL string

const (
	upsertStudentsSQL = `INSERT INTO students (full_name, group_name)
SELECT * FROM unnest($1::text[], $2::text[])
ON CONFLICT (full_name) DO NOTHING`

	selectStudentIDsSQL = `SELECT id, full_name FROM students WHERE full_name = ANY($1::text[])`

	resetSQL = `TRUNCATE grades, students RESTART IDENTITY`

	moreTwosSQL = `SELECT s.full_name, t.count_twos
FROM (
    SELECT g.student_id, COUNT(*)::int AS count_twos
    FROM grades g
    WHERE g.grade = $1
    GROUP BY g.student_id
    HAVING COUNT(*) > $2
) t
JOIN students s ON s.id = t.student_id
ORDER BY t.count_twos DESC, s.full_name`

	fewerTwosSQL = `SELECT s.full_name, t.count_twos
FROM (
    SELECT g.student_id, COUNT(*)::int AS count_twos
    FROM grades g
    WHERE g.grade = $1
    GROUP BY g.student_id
    HAVING COUNT(*) < $2
) t
JOIN students s ON s.id = t.student_id
ORDER BY t.count_twos DESC, s.full_name`
)

var gradeColumns = []string{"student_id", "grade_date", "grade"}

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Store implements core.Store.
type Store struct {
	db DB
}

var _ core.Store = (*Store)(nil)

// New wraps a pool (or any DB) as a Store.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pgx pool sized from cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the students and grades tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Reset deletes every grade and student and restarts the id sequences.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, resetSQL); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// InTx runs fn in one transaction, committing only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		// The caller's context may already be done; the rollback must still reach the server.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) UpsertStudents(ctx context.Context, students []core.Student) (map[string]int64, error) {
	names := make([]string, len(students))
	groups := make([]string, len(students))
	for i, st := range students {
		names[i] = st.FullName
		groups[i] = st.Group
	}

	if _, err := t.tx.Exec(ctx, upsertStudentsSQL, names, groups); err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, selectStudentIDsSQL, names)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]int64, len(students))
	var (
		id   int64
		name string
	)
	_, err = pgx.ForEachRow(rows, []any{&id, &name}, func() error {
		ids[name] = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan student ids: %w", err)
	}
	return ids, nil
}

func (t *txStore) InsertGrades(ctx context.Context, grades []core.Grade) (int64, error) {
	src := pgx.CopyFromSlice(len(grades), func(i int) ([]any, error) {
		g := grades[i]
		return []any{g.StudentID, pgtype.Date{Time: g.Date, Valid: true}, int16(g.Value)}, nil
	})
	return t.tx.CopyFrom(ctx, pgx.Identifier{"grades"}, gradeColumns, src)
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
	rows, err := s.db.Query(ctx, query, core.TwoGrade, n)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.StudentTwos, error) {
		var st core.StudentTwos
		err := row.Scan(&st.FullName, &st.CountTwos)
		return st, err
	})
}
