package message

import (
	"TextDesk/entity"
	"TextDesk/impl/core"
	"TextDesk/internal/lib/api/response"
	"TextDesk/internal/lib/sl"
	"TextDesk/internal/service/relay"
	smsgateway "TextDesk/internal/service/sms-gateway"
	"errors"
	"fmt"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// maxForm leaves room for multipart framing above the attachment cap.
const maxForm = entity.MaxMmsSize + 1<<20

// Send handles an outbound message from a manager.
// Content-Type: multipart/form-data (or urlencoded for text only)
// Fields: to (repeatable or comma separated), text, files (repeatable)
func Send(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.message"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		r.Body = http.MaxBytesReader(w, r.Body, maxForm)
		err := r.ParseMultipartForm(maxForm)
		if errors.Is(err, http.ErrNotMultipart) {
			err = r.ParseForm()
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				render.Status(r, http.StatusRequestEntityTooLarge)
				render.JSON(w, r, response.Error("Attachments exceed the multimedia message size limit"))
				return
			}
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid form"))
			return
		}

		to := recipients(r.Form["to"])
		text := strings.TrimSpace(r.FormValue("text"))

		files, err := readFiles(r)
		if err != nil {
			logger.Error("read uploaded files", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Failed to read uploaded file"))
			return
		}

		result, err := handler.SendMessage(r.Context(), to, text, files)
		if err != nil {
			status, message := sendError(err)
			if status >= http.StatusInternalServerError {
				logger.Error("send message", sl.Err(err))
			} else {
				logger.Debug("send message rejected", sl.Err(err))
			}
			render.Status(r, status)
			render.JSON(w, r, response.Error(message))
			return
		}
		render.JSON(w, r, response.Ok(result))
	}
}

func recipients(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func readFiles(r *http.Request) ([]entity.OutboundFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File["files"]
	files := make([]entity.OutboundFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", fh.Filename, err)
		}
		files = append(files, entity.OutboundFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func sendError(err error) (int, string) {
	var apiErr *smsgateway.APIError
	switch {
	case errors.Is(err, core.ErrTooLarge), errors.Is(err, relay.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "Attachments exceed the multimedia message size limit"
	case errors.Is(err, relay.ErrUnsupported):
		return http.StatusUnsupportedMediaType, "Only image, audio and video attachments can be sent"
	case core.IsClientError(err):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, fmt.Sprintf("Provider rejected the message: status %d", apiErr.Status)
	default:
		return http.StatusInternalServerError, "Failed to send message"
	}
}
