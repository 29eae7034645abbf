package conversation

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/api/response"
	"TextDesk/internal/lib/sl"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
)

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.conversation"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		summaries, err := handler.ListConversations(r.Context())
		if err != nil {
			logger.Error("list conversations", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to list conversations"))
			return
		}
		if summaries == nil {
			summaries = []entity.ConversationSummary{}
		}
		render.JSON(w, r, response.Ok(summaries))
	}
}
