package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/grades/internal/logging"
	"github.com/google/uuid"
)

// ArchiveTimeout bounds the archive write that follows a committed upload.
const ArchiveTimeout = 30 * time.Second

// UploadSource describes the client that sent an upload.
type UploadSource struct {
	ClientIP  string
	UserAgent string
}

type uploadSourceKey struct{}

// WithUploadSource returns a copy of ctx carrying src for upload logs.
func WithUploadSource(ctx context.Context, src UploadSource) context.Context {
	return context.WithValue(ctx, uploadSourceKey{}, src)
}

// UploadSourceFrom returns the source stored by WithUploadSource, or the zero value.
func UploadSourceFrom(ctx context.Context) UploadSource {
	src, _ := ctx.Value(uploadSourceKey{}).(UploadSource)
	return src
}

// IngestUpload runs Ingest for one uploaded file under the upload limiter
// and the configured timeout.
//
// Each call gets a fresh upload id used in logs, metrics and the archive key.
// Archiving happens only after a successful commit, under its own
// ArchiveTimeout, and an archive failure is logged without failing the upload.
func (s *Service) IngestUpload(ctx context.Context, fileName string, content []byte) (*UploadResult, error) {
	uploadID := uuid.NewString()
	src := UploadSourceFrom(ctx)
	logger := logging.WithFields(ctx,
		"upload_id", uploadID,
		"file", fileName,
		"size", len(content),
		"client_ip", src.ClientIP,
		"user_agent", src.UserAgent,
	)

	if err := s.limiter.Acquire(ctx); err != nil {
		s.recorder.ObserveIngestion(OutcomeBusy, 0, 0, 0, 0)
		logger.Warn("upload rejected", "error", err, "active", s.limiter.ActiveCount())
		return nil, err
	}
	defer s.limiter.Release()

	ingestCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.Ingest(ingestCtx, content)
	elapsed := time.Since(start)
	if err != nil {
		s.recorder.ObserveIngestion(OutcomeFailed, 0, 0, 0, elapsed)
		logger.Error("ingestion failed", "error", err, "duration", elapsed)
		return nil, err
	}

	out := &UploadResult{
		IngestResult: *res,
		UploadID:     uploadID,
		FileName:     fileName,
		Duration:     elapsed,
	}

	if s.archiver != nil && res.RecordsLoaded > 0 {
		// The rows are committed; archive even if the caller has gone away.
		archiveCtx, cancelArchive := context.WithTimeout(context.WithoutCancel(ctx), ArchiveTimeout)
		key, err := s.archiver.Archive(archiveCtx, uploadID, fileName, content)
		cancelArchive()
		if err != nil {
			logger.Warn("archive upload failed", "error", err)
		} else {
			out.ArchiveKey = key
		}
	}

	s.recorder.ObserveIngestion(OutcomeOK, res.RecordsLoaded, len(res.Errors), res.Students, elapsed)
	logger.Info("ingestion completed",
		"records_loaded", res.RecordsLoaded,
		"students", res.Students,
		"rejected", len(res.Errors),
		"duration", elapsed,
		"archive_key", out.ArchiveKey,
	)
	return out, nil
}
