// Package core provides grade ingestion and the twos reports.
//
// It has no knowledge of HTTP or of a concrete database. Web handlers, the
// CLI and tests drive it through [Service] and plug storage in through the
// [Store] interface.
//
// # Ingestion
//
// [Service.Ingest] runs the whole pipeline for one file:
//
//  1. [Parser.Parse] checks the bytes are UTF-8, drops blank lines, detects
//     an optional header and validates every data row with [Validator].
//  2. Rows that fail are collected as [RowError] values with their line
//     number; they never stop the batch.
//  3. If at least one row is valid, one transaction upserts the referenced
//     students ([ResolveStudents]) and inserts all grades.
//
// [Service.IngestUpload] wraps Ingest with the [UploadLimiter], a timeout,
// metrics, logging and optional archiving of the raw file.
//
// # Students
//
// A student is identified by full name. When a name repeats inside one file
// with different groups the first group is used, and a student already in
// storage keeps its stored group.
//
// # Errors
//
// Field validators return *[FieldError]. Storage failures surface as
// *[StorageError]. [MapError] turns any error into a [UserMessage] with a
// stable code for API responses.
package core
