package core

import (
	"context"
	"fmt"
)

// Ingest parses content, upserts the students it references and inserts all
// valid grades in one transaction.
//
// Row and file problems are reported in the result and never returned as an
// error. When no row is valid nothing touches storage and the result carries
// zero counts. A *StorageError means the transaction was rolled back and no
// row of this file is visible.
func (s *Service) Ingest(ctx context.Context, content []byte) (*IngestResult, error) {
	records, rowErrs := s.parser.Parse(content)
	result := &IngestResult{Errors: rowErrs}
	if len(records) == 0 {
		return result, nil
	}

	var students int
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ids, n, err := ResolveStudents(ctx, tx, records)
		if err != nil {
			return err
		}

		grades := make([]Grade, len(records))
		for i, rec := range records {
			grades[i] = Grade{StudentID: ids[rec.FullName], Date: rec.Date, Value: rec.Grade}
		}
		if _, err := tx.InsertGrades(ctx, grades); err != nil {
			return fmt.Errorf("insert grades: %w", err)
		}
		students = n
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "ingest", Err: err}
	}

	result.RecordsLoaded = len(records)
	result.Students = students
	return result, nil
}
