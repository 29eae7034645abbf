package message

import (
	"TextDesk/internal/lib/api/response"
	"TextDesk/internal/lib/sl"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
)

// List returns every conversation's messages keyed by conversation key.
func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := handler.GetMessages(r.Context())
		if err != nil {
			log.With(
				sl.Module("http.handlers.message"),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			).Error("list messages", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to list messages"))
			return
		}
		render.JSON(w, r, response.Ok(messages))
	}
}
