package conversation

import (
	"TextDesk/impl/core"
	"TextDesk/internal/lib/api/cont"
	"TextDesk/internal/lib/api/response"
	"TextDesk/internal/lib/sl"
	"errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
)

type ReadResponse struct {
	Key    string `json:"key"`
	Marked int    `json:"marked"`
}

func MarkRead(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		logger := log.With(
			sl.Module("http.handlers.conversation"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("key", key),
		)

		username := ""
		if user := cont.GetUser(r.Context()); user != nil {
			username = user.Username
		}

		marked, err := handler.MarkRead(r.Context(), username, key)
		if errors.Is(err, core.ErrConversationNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Conversation not found"))
			return
		}
		if err != nil {
			logger.Error("mark read", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to mark conversation read"))
			return
		}
		render.JSON(w, r, response.Ok(ReadResponse{Key: key, Marked: marked}))
	}
}
