package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/grades/internal/core"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func TestInTx_IngestsInOneTransaction(t *testing.T) {
	mock, store := newMock(t)
	ctx := context.Background()

	names := []string{"Иванов Иван", "Петров Пётр"}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").
		WithArgs(names, []string{"101Б", "102А"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name FROM students")).
		WithArgs(names).
		WillReturnRows(pgxmock.NewRows([]string{"id", "full_name"}).
			AddRow(int64(7), "Иванов Иван").
			AddRow(int64(8), "Петров Пётр"))
	mock.ExpectCopyFrom(pgx.Identifier{"grades"}, gradeColumns).WillReturnResult(2)
	mock.ExpectCommit()

	var (
		ids    map[string]int64
		copied int64
	)
	err := store.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		var err error
		ids, err = tx.UpsertStudents(ctx, []core.Student{
			{FullName: "Иванов Иван", Group: "101Б"},
			{FullName: "Петров Пётр", Group: "102А"},
		})
		if err != nil {
			return err
		}
		day := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
		copied, err = tx.InsertGrades(ctx, []core.Grade{
			{StudentID: ids["Иванов Иван"], Date: day, Value: 2},
			{StudentID: ids["Петров Пётр"], Date: day, Value: 5},
		})
		return err
	})

	require.NoError(t, err)
	require.Equal(t, map[string]int64{"Иванов Иван": 7, "Петров Пётр": 8}, ids)
	require.EqualValues(t, 2, copied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollsBackOnFailure(t *testing.T) {
	mock, store := newMock(t)
	boom := errors.New("copy failed")

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"grades"}, gradeColumns).WillReturnError(boom)
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		_, err := tx.InsertGrades(ctx, []core.Grade{{StudentID: 1, Date: time.Now(), Value: 3}})
		return err
	})

	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollsBackAfterCancel(t *testing.T) {
	mock, store := newMock(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	names := []string{"Иванов Иван"}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").
		WithArgs(names, []string{"101Б"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name FROM students")).
		WithArgs(names).
		WillReturnRows(pgxmock.NewRows([]string{"id", "full_name"}).AddRow(int64(7), "Иванов Иван"))
	mock.ExpectRollback()

	err := store.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		if _, err := tx.UpsertStudents(ctx, []core.Student{{FullName: "Иванов Иван", Group: "101Б"}}); err != nil {
			return err
		}
		cancel()
		return ctx.Err()
	})

	require.ErrorIs(t, err, context.Canceled)
	require.NotContains(t, err.Error(), "rollback")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_BeginAndCommitErrors(t *testing.T) {
	t.Run("begin", func(t *testing.T) {
		mock, store := newMock(t)
		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		err := store.InTx(context.Background(), func(context.Context, core.Tx) error {
			t.Fatal("fn called without a transaction")
			return nil
		})
		require.ErrorContains(t, err, "begin transaction")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit", func(t *testing.T) {
		mock, store := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("could not serialize access"))

		err := store.InTx(context.Background(), func(context.Context, core.Tx) error { return nil })
		require.ErrorContains(t, err, "commit")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReports(t *testing.T) {
	tests := []struct {
		name    string
		clause  string
		query   func(*Store, context.Context, int) ([]core.StudentTwos, error)
		n       int
		rows    [][]any
		want    []core.StudentTwos
		wantErr bool
	}{
		{
			name:   "more than",
			clause: "HAVING COUNT(*) > $2",
			query:  (*Store).StudentsWithMoreTwos,
			n:      3,
			rows:   [][]any{{"Иванов Иван", 4}},
			want:   []core.StudentTwos{{FullName: "Иванов Иван", CountTwos: 4}},
		},
		{
			name:   "fewer than",
			clause: "HAVING COUNT(*) < $2",
			query:  (*Store).StudentsWithFewerTwos,
			n:      5,
			rows:   [][]any{{"Иванов Иван", 4}, {"Петров Пётр", 2}},
			want:   []core.StudentTwos{{FullName: "Иванов Иван", CountTwos: 4}, {FullName: "Петров Пётр", CountTwos: 2}},
		},
		{
			name:   "empty",
			clause: "HAVING COUNT(*) > $2",
			query:  (*Store).StudentsWithMoreTwos,
			n:      100,
			want:   []core.StudentTwos{},
		},
		{
			name:    "query error",
			clause:  "HAVING COUNT(*) < $2",
			query:   (*Store).StudentsWithFewerTwos,
			n:       5,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, store := newMock(t)
			exp := mock.ExpectQuery(regexp.QuoteMeta(tt.clause)).WithArgs(core.TwoGrade, tt.n)
			if tt.wantErr {
				exp.WillReturnError(errors.New("connection reset by peer"))
			} else {
				rows := pgxmock.NewRows([]string{"full_name", "count_twos"})
				for _, r := range tt.rows {
					rows.AddRow(r...)
				}
				exp.WillReturnRows(rows)
			}

			got, err := tt.query(store, context.Background(), tt.n)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				if len(tt.want) == 0 {
					require.Empty(t, got)
				} else {
					require.Equal(t, tt.want, got)
				}
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEnsureSchemaAndPing(t *testing.T) {
	mock, store := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS students")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
	require.Error(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReset(t *testing.T) {
	mock, store := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(resetSQL)).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	require.NoError(t, store.Reset(ctx))

	mock.ExpectExec(regexp.QuoteMeta(resetSQL)).WillReturnError(errors.New("permission denied for table grades"))
	err := store.Reset(ctx)
	require.ErrorContains(t, err, "permission denied")

	require.NoError(t, mock.ExpectationsWereMet())
}
