package core

import (
	"context"
	"time"
)

// TwoGrade is the grade value counted by the twos report.
const TwoGrade = 2

// Report query names used in metrics and logs.
const (
	ReportMoreTwos  = "more_twos"
	ReportFewerTwos = "fewer_twos"
)

// StudentsWithMoreTwos lists students with strictly more than n grades of
// TwoGrade, most twos first and then by name.
func (s *Service) StudentsWithMoreTwos(ctx context.Context, n int) ([]StudentTwos, error) {
	return s.report(ctx, ReportMoreTwos, n, s.store.StudentsWithMoreTwos)
}

// StudentsWithFewerTwos lists students with at least one but strictly fewer
// than n grades of TwoGrade, most twos first and then by name.
func (s *Service) StudentsWithFewerTwos(ctx context.Context, n int) ([]StudentTwos, error) {
	return s.report(ctx, ReportFewerTwos, n, s.store.StudentsWithFewerTwos)
}

func (s *Service) report(ctx context.Context, name string, n int,
	query func(context.Context, int) ([]StudentTwos, error)) ([]StudentTwos, error) {
	if n < 0 {
		return nil, ErrInvalidThreshold
	}

	start := time.Now()
	rows, err := query(ctx, n)
	s.recorder.ObserveReport(name, time.Since(start), err)
	if err != nil {
		return nil, &StorageError{Op: name, Err: err}
	}
	if rows == nil {
		rows = []StudentTwos{}
	}
	return rows, nil
}
