package core

import (
	"context"
	"time"
)

// DefaultUploadTimeout bounds a single ingestion when no timeout is configured.
const DefaultUploadTimeout = 2 * time.Minute

// Service provides grade ingestion and reporting on top of a Store.
type Service struct {
	store         Store
	parser        *Parser
	limiter       *UploadLimiter
	archiver      Archiver
	recorder      Recorder
	uploadTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithValidator sets the field validator used by the parser.
func WithValidator(v *Validator) Option {
	return func(s *Service) {
		if v != nil {
			s.parser = NewParser(v)
		}
	}
}

// WithUploadLimiter bounds the number of concurrent uploads.
func WithUploadLimiter(l *UploadLimiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithArchiver keeps a copy of every upload that loaded at least one record.
func WithArchiver(a Archiver) Option {
	return func(s *Service) {
		s.archiver = a
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithUploadTimeout bounds each IngestUpload call.
func WithUploadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.uploadTimeout = d
		}
	}
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		parser:        NewParser(nil),
		limiter:       NewUploadLimiter(DefaultMaxConcurrentUploads, DefaultMaxWaitTime),
		recorder:      noopRecorder{},
		uploadTimeout: DefaultUploadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks that storage is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// UploadLimiterStatus returns the current state of the upload limiter.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until every in-flight upload finished or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
