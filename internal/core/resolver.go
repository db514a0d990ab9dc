package core

import (
	"context"
	"fmt"
)

// distinctStudents folds records into one Student per full name, in order of
// first appearance. The first group seen for a name wins; later rows with the
// same name and a different group do not change it.
func distinctStudents(records []GradeRecord) []Student {
	seen := make(map[string]struct{}, len(records))
	students := make([]Student, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.FullName]; ok {
			continue
		}
		seen[rec.FullName] = struct{}{}
		students = append(students, Student{FullName: rec.FullName, Group: rec.Group})
	}
	return students
}

// ResolveStudents upserts the distinct students referenced by records and
// returns the id of every one of them together with their count. Students
// already in storage keep their stored group.
func ResolveStudents(ctx context.Context, tx Tx, records []GradeRecord) (map[string]int64, int, error) {
	students := distinctStudents(records)
	if len(students) == 0 {
		return map[string]int64{}, 0, nil
	}

	ids, err := tx.UpsertStudents(ctx, students)
	if err != nil {
		return nil, 0, fmt.Errorf("upsert students: %w", err)
	}
	for _, st := range students {
		if _, ok := ids[st.FullName]; !ok {
			return nil, 0, fmt.Errorf("student %q has no id after upsert", st.FullName)
		}
	}
	return ids, len(students), nil
}
