package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/grades/internal/core"
)

// handleUploadGrades ingests one multipart CSV file sent in the "file" field.
//
// Row problems never fail the request: they come back in "errors" with a 200.
// Only form problems (400/413), a saturated limiter (503), a client that
// disconnected (499) and storage failures (500) produce an error body.
func (s *Server) handleUploadGrades(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respondError(w, r, fmt.Errorf("file too large: %w", err), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", core.ErrEmptyUpload, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, core.ErrEmptyUpload, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		respondError(w, r, core.ErrNotCSV, http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	res, err := s.service.IngestUpload(ctx, header.Filename, content)
	if err != nil {
		respondError(w, r, err, uploadErrorStatus(err))
		return
	}

	w.Header().Set("X-Upload-ID", res.UploadID)
	writeJSON(w, http.StatusOK, core.NewIngestResponse(&res.IngestResult))
}

// statusClientClosedRequest is nginx's code for a client that went away
// before the response was written.
const statusClientClosedRequest = 499

func uploadErrorStatus(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
