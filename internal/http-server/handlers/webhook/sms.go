package webhook

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/api/response"
	"TextDesk/internal/lib/sl"
	"crypto/subtle"
	"errors"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"io"
	"log/slog"
	"net/http"
)

const maxPayload = 4 << 20

const (
	validationHeader   = "Validation-Token"
	verificationHeader = "Verification-Token"
)

type Summary struct {
	Received int                   `json:"received"`
	Failed   int                   `json:"failed"`
	Results  []entity.IngestResult `json:"results"`
}

// Validate answers the provider's subscription handshake by echoing the
// validation token in the response header and body.
func Validate(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !echoValidation(w, r) {
			log.With(sl.Module("http.handlers.webhook")).Debug("webhook probe without validation token")
			render.JSON(w, r, response.Ok("ok"))
		}
	}
}

func echoValidation(w http.ResponseWriter, r *http.Request) bool {
	token := r.Header.Get(validationHeader)
	if token == "" {
		token = r.URL.Query().Get("validationToken")
	}
	if token == "" {
		return false
	}
	w.Header().Set(validationHeader, token)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, token)
	return true
}

// Receive ingests one notification, an array of them, or an {"events": [...]}
// batch. Per-event failures are reported in the body without failing the call
// so the provider does not redeliver events that were already filed.
func Receive(log *slog.Logger, handler Core, verificationToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.webhook"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if echoValidation(w, r) {
			logger.Info("webhook subscription validated")
			return
		}

		if verificationToken != "" {
			got := r.Header.Get(verificationHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(verificationToken)) != 1 {
				logger.Warn("webhook verification token mismatch")
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("Invalid verification token"))
				return
			}
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayload))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				render.Status(r, http.StatusRequestEntityTooLarge)
				render.JSON(w, r, response.Error("Payload too large"))
				return
			}
			logger.Error("read webhook body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}

		results, err := handler.IngestWebhook(r.Context(), payload)
		if err != nil {
			logger.Warn("webhook payload rejected", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Malformed payload"))
			return
		}

		summary := Summary{Received: len(results), Results: results}
		for _, res := range results {
			if res.Outcome == entity.OutcomeFailed {
				summary.Failed++
			}
		}
		logger.With(
			slog.Int("received", summary.Received),
			slog.Int("failed", summary.Failed),
		).Debug("webhook processed")

		render.JSON(w, r, response.Ok(summary))
	}
}
