package files

import (
	"TextDesk/internal/lib/sl"
	"TextDesk/internal/storage"
	"context"
	"errors"
	"fmt"
	"github.com/go-chi/chi/v5"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
)

type Core interface {
	OpenFile(ctx context.Context, key string) (io.ReadCloser, string, int64, error)
}

// Download streams a stored attachment. Keys embed provider message ids and
// random ulids, so the route is public like the URLs handed to the provider.
// Endpoint: GET /files/*
func Download(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if key == "" || strings.Contains(key, "..") {
			http.Error(w, "invalid file key", http.StatusBadRequest)
			return
		}

		reader, contentType, length, err := handler.OpenFile(r.Context(), key)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("failed to open file", slog.String("key", key), sl.Err(err))
			http.Error(w, "File not available", http.StatusInternalServerError)
			return
		}
		defer reader.Close()

		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		if length > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, path.Base(key)))
		w.Header().Set("Cache-Control", "public, max-age=86400")

		if _, err := io.Copy(w, reader); err != nil {
			log.Error("failed to stream file", slog.String("key", key), sl.Err(err))
		}
	}
}
