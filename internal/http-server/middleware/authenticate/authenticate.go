package authenticate

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/api/cont"
	"TextDesk/internal/lib/api/response"
	"TextDesk/internal/lib/sl"
	"fmt"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Authenticate interface {
	AuthenticateByToken(token string) (*entity.UserAuth, error)
}

// Logger writes one line per request. It wraps every route, public or not.
func Logger(log *slog.Logger) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.logger")

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			remote := r.RemoteAddr
			// if the request is coming from a proxy, use the X-Forwarded-For header
			if xRemote := r.Header.Get("X-Forwarded-For"); xRemote != "" {
				remote = xRemote
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			rec := &requestLog{}
			t1 := time.Now()
			defer func() {
				attrs := []any{
					mod,
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", remote),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Int("status", ww.Status()),
					slog.Int("size", ww.BytesWritten()),
					slog.Float64("duration", time.Since(t1).Seconds()),
				}
				log.With(append(attrs, rec.attrs...)...).Info("incoming request")
			}()
			next.ServeHTTP(ww, r.WithContext(withRequestLog(r.Context(), rec)))
		}
		return http.HandlerFunc(fn)
	}
}

// New rejects requests without a valid bearer session token or API key.
func New(log *slog.Logger, auth Authenticate) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized")

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			rec := requestLogFrom(r.Context())

			header := r.Header.Get("Authorization")
			if len(header) == 0 {
				rec.add(sl.Err(fmt.Errorf("authorization header not found")))
				authFailed(w, r, "Authorization header not found")
				return
			}
			token := ""
			if scheme, value, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
				token = strings.TrimSpace(value)
			}
			if len(token) == 0 {
				rec.add(sl.Err(fmt.Errorf("token not found")))
				authFailed(w, r, "Token not found")
				return
			}
			rec.add(sl.Secret("token", token))

			if auth == nil {
				authFailed(w, r, "Unauthorized: authentication not enabled")
				return
			}

			user, err := auth.AuthenticateByToken(token)
			if err != nil {
				rec.add(sl.Err(err))
				authFailed(w, r, "Unauthorized: invalid token")
				return
			}
			rec.add(slog.String("user", user.Username))
			ctx := cont.PutUser(r.Context(), user)

			w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
			w.Header().Set("X-User", user.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

func authFailed(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.Error(message))
}
