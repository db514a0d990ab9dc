package core

import (
	"context"
	"time"
)

// GradeRecord is one data row that passed every field validator.
type GradeRecord struct {
	Row      int       // line number in the source file, header included
	Date     time.Time // calendar date at UTC midnight
	Group    string    // normalized group code, e.g. 101Б
	FullName string    // whitespace-collapsed full name
	Grade    int       // 1..5
}

// RowError describes a rejected row. Row 0 is reserved for whole-file failures.
type RowError struct {
	Row    int    `json:"row"`
	Detail string `json:"detail"`
}

// Student is the persisted owner of grades. FullName is the natural key.
type Student struct {
	ID       int64
	FullName string
	Group    string
}

// Grade is a single persisted grade row.
type Grade struct {
	StudentID int64
	Date      time.Time
	Value     int
}

// IngestResult summarizes one ingestion call. Errors is never nil.
type IngestResult struct {
	RecordsLoaded int        `json:"records_loaded"`
	Students      int        `json:"students"`
	Errors        []RowError `json:"errors,omitempty"`
}

// IngestResponse is the wire form of an ingestion result shared by the
// HTTP boundary and the CLI.
type IngestResponse struct {
	Status string `json:"status"`
	IngestResult
}

// NewIngestResponse wraps a successful result.
func NewIngestResponse(r *IngestResult) IngestResponse {
	return IngestResponse{Status: "ok", IngestResult: *r}
}

// UploadResult is an IngestResult plus the metadata of the upload that produced it.
type UploadResult struct {
	IngestResult
	UploadID   string
	FileName   string
	Duration   time.Duration
	ArchiveKey string // empty when archiving is disabled or failed
}

// StudentTwos is one row of the twos report.
type StudentTwos struct {
	FullName  string `json:"full_name"`
	CountTwos int    `json:"count_twos"`
}

// Tx is the set of writes available inside one storage transaction.
type Tx interface {
	// UpsertStudents inserts every student whose full name is not stored yet,
	// leaving existing rows untouched, and returns the id of every requested name.
	UpsertStudents(ctx context.Context, students []Student) (map[string]int64, error)

	// InsertGrades batch-inserts grades and reports how many rows were written.
	InsertGrades(ctx context.Context, grades []Grade) (int64, error)
}

// Reporter answers the read-only twos queries.
type Reporter interface {
	StudentsWithMoreTwos(ctx context.Context, n int) ([]StudentTwos, error)
	StudentsWithFewerTwos(ctx context.Context, n int) ([]StudentTwos, error)
}

// Store is the storage contract the Service depends on.
type Store interface {
	Reporter

	// InTx runs fn inside a single transaction. An error from fn or from the
	// commit rolls back every write made through tx.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Ping(ctx context.Context) error
}

// Archiver keeps a copy of accepted upload bytes and returns the key it was stored under.
type Archiver interface {
	Archive(ctx context.Context, uploadID, fileName string, content []byte) (string, error)
}

// Recorder receives ingestion and report measurements.
type Recorder interface {
	ObserveIngestion(outcome string, loaded, rejected, students int, d time.Duration)
	ObserveReport(query string, d time.Duration, err error)
}

// Ingestion outcomes reported to the Recorder.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeBusy   = "busy"
)

type noopRecorder struct{}

func (noopRecorder) ObserveIngestion(string, int, int, int, time.Duration) {}
func (noopRecorder) ObserveReport(string, time.Duration, error)            {}
