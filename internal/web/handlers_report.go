package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/grades/internal/core"
)

type reportFunc func(ctx context.Context, n int) ([]core.StudentTwos, error)

// handleMoreTwos serves students with more than n twos (default 3).
func (s *Server) handleMoreTwos(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, s.cfg.Report.MoreThanDefault, s.service.StudentsWithMoreTwos)
}

// handleFewerTwos serves students with at least one and fewer than n twos (default 5).
func (s *Server) handleFewerTwos(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, s.cfg.Report.LessThanDefault, s.service.StudentsWithFewerTwos)
}

func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, n int, query reportFunc) {
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			respondError(w, r, core.ErrInvalidThreshold, http.StatusBadRequest)
			return
		}
		n = v
	}

	rows, err := query(r.Context(), n)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrInvalidThreshold) {
			status = http.StatusBadRequest
		}
		respondError(w, r, err, status)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
