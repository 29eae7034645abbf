package auth

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/api/response"
	"TextDesk/internal/lib/sl"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
)

type Core interface {
	Login(username, password string) (*entity.Session, error)
}

func Login(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.auth"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.LoginRequest
		if err := render.Bind(r, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}

		s, err := handler.Login(req.Username, req.Password)
		if err != nil {
			logger.With(slog.String("username", req.Username), sl.Err(err)).Warn("login failed")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("Invalid credentials"))
			return
		}
		logger.With(slog.String("username", s.Username)).Info("login")
		render.JSON(w, r, response.Ok(s))
	}
}
