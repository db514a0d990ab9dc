package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store. Writes made inside InTx are staged and only
// applied when fn returns nil and commitErr is unset.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	students map[string]Student
	grades   []Grade

	txCount   int
	upsertErr error
	insertErr error
	commitErr error
	pingErr   error
	reportErr error

	// block, when set, is waited on inside InTx before fn runs.
	block chan struct{}
}

// afterCommit runs hook once InTx has committed.
type afterCommit struct {
	*memStore
	hook func()
}

func (a afterCommit) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := a.memStore.InTx(ctx, fn); err != nil {
		return err
	}
	a.hook()
	return nil
}

func newMemStore() *memStore {
	return &memStore{students: make(map[string]Student)}
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	tx := &memTx{store: m, nextID: m.nextID, students: make(map[string]Student, len(m.students))}
	for k, v := range m.students {
		tx.students[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	m.students = tx.students
	m.nextID = tx.nextID
	m.grades = append(m.grades, tx.grades...)
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) StudentsWithMoreTwos(_ context.Context, n int) ([]StudentTwos, error) {
	return m.twos(func(c int) bool { return c > n })
}

func (m *memStore) StudentsWithFewerTwos(_ context.Context, n int) ([]StudentTwos, error) {
	return m.twos(func(c int) bool { return c > 0 && c < n })
}

func (m *memStore) twos(keep func(int) bool) ([]StudentTwos, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reportErr != nil {
		return nil, m.reportErr
	}

	names := make(map[int64]string, len(m.students))
	for _, s := range m.students {
		names[s.ID] = s.FullName
	}
	counts := make(map[int64]int)
	for _, g := range m.grades {
		if g.Value == TwoGrade {
			counts[g.StudentID]++
		}
	}

	var out []StudentTwos
	for id, c := range counts {
		if keep(c) {
			out = append(out, StudentTwos{FullName: names[id], CountTwos: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CountTwos != out[j].CountTwos {
			return out[i].CountTwos > out[j].CountTwos
		}
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}

func (m *memStore) studentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.students)
}

func (m *memStore) gradeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.grades)
}

type memTx struct {
	store    *memStore
	nextID   int64
	students map[string]Student
	grades   []Grade
}

func (t *memTx) UpsertStudents(_ context.Context, students []Student) (map[string]int64, error) {
	if t.store.upsertErr != nil {
		return nil, t.store.upsertErr
	}
	ids := make(map[string]int64, len(students))
	for _, s := range students {
		existing, ok := t.students[s.FullName]
		if !ok {
			t.nextID++
			existing = Student{ID: t.nextID, FullName: s.FullName, Group: s.Group}
			t.students[s.FullName] = existing
		}
		ids[s.FullName] = existing.ID
	}
	return ids, nil
}

func (t *memTx) InsertGrades(_ context.Context, grades []Grade) (int64, error) {
	if t.store.insertErr != nil {
		return 0, t.store.insertErr
	}
	t.grades = append(t.grades, grades...)
	return int64(len(grades)), nil
}

// recorderSpy captures Recorder calls.
type recorderSpy struct {
	mu         sync.Mutex
	ingestions []string
	loaded     int
	reports    []string
}

func (r *recorderSpy) ObserveIngestion(outcome string, loaded, _, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingestions = append(r.ingestions, outcome)
	r.loaded += loaded
}

func (r *recorderSpy) ObserveReport(query string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, query)
}

// archiverSpy records archived uploads and can be made to fail.
type archiverSpy struct {
	err    error
	calls  int
	last   []byte
	ctxErr error
}

func (a *archiverSpy) Archive(ctx context.Context, uploadID, fileName string, content []byte) (string, error) {
	a.calls++
	a.last = content
	a.ctxErr = ctx.Err()
	if a.err != nil {
		return "", a.err
	}
	return "uploads/" + uploadID + "-" + fileName, nil
}

const (
	sampleTwos = "01.09.2023;101Б;Иванов Иван;2\n" +
		"02.09.2023;101Б;Иванов Иван;2\n" +
		"03.09.2023;101Б;Иванов Иван;2\n" +
		"04.09.2023;101Б;Иванов Иван;2\n" +
		"05.09.2023;101Б;Петров Пётр;2\n" +
		"06.09.2023;101Б;Петров Пётр;2\n"
)

func newTestService(store Store, opts ...Option) *Service {
	opts = append([]Option{WithValidator(DefaultValidator(WithClock(func() time.Time { return fixedNow })))}, opts...)
	return NewService(store, opts...)
}
