package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/JonMunkholm/kartlog/internal/core"
	"github.com/JonMunkholm/kartlog/internal/logging"
	"github.com/go-chi/chi/v5"
)

// exportField is the multipart field holding the export.
const exportField = "file"

// handleImport runs one import for the user in the path. The export is the
// request body, or the "file" field of a multipart form.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	logger := logging.WithFields(r.Context(), "user_id", userID)

	if err := s.limiter.Acquire(r.Context()); err != nil {
		respondError(w, r, err, nil)
		return
	}
	defer s.limiter.Release()
	if s.metrics != nil {
		defer s.metrics.ImportStarted()()
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	body, closeBody, err := exportReader(r)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	defer closeBody()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	logger.Info("import started")
	summary, err := s.importer.Run(ctx, userID, body, nil)
	if err != nil {
		var partial *core.RunSummary
		if summary.RunID != "" {
			partial = &summary
		}
		respondError(w, r, err, partial)
		return
	}

	logger.Info("import finished", "uploaded", summary.Uploaded, "skipped", summary.Skipped)
	writeJSON(w, http.StatusOK, summary)
}

// exportReader returns the export stream of r.
func exportReader(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}

	file, _, err := r.FormFile(exportField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, err
		}
		return nil, nil, &core.SetupError{Op: "read export", Err: fmt.Errorf("multipart field %q: %w", exportField, err)}
	}
	return file, func() { file.Close() }, nil
}
