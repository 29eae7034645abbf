package api

import (
	"TextDesk/internal/config"
	"TextDesk/internal/http-server/handlers/auth"
	"TextDesk/internal/http-server/handlers/conversation"
	"TextDesk/internal/http-server/handlers/errors"
	"TextDesk/internal/http-server/handlers/files"
	"TextDesk/internal/http-server/handlers/job"
	"TextDesk/internal/http-server/handlers/message"
	"TextDesk/internal/http-server/handlers/webhook"
	"TextDesk/internal/http-server/middleware/authenticate"
	"TextDesk/internal/http-server/middleware/timeout"
	"TextDesk/internal/lib/sl"
	"TextDesk/internal/ws"
	"context"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	ws.Authenticator
	webhook.Core
	auth.Core
	conversation.Core
	message.Core
	job.Core
}

// Options carries the optional parts of the router.
type Options struct {
	// Files serves /files/* when the blob backend stores on this service.
	Files files.Core
	Hub   *ws.Hub
}

// NewRouter builds the full route tree. Webhook, files and metrics routes are
// public; the websocket authenticates with its query token.
func NewRouter(conf *config.Config, log *slog.Logger, handler Handler, opts Options) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(authenticate.Logger(log))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Handle("/metrics", promhttp.Handler())

	router.Route("/webhook", func(r chi.Router) {
		r.Get("/sms", webhook.Validate(log))
		r.Post("/sms", webhook.Receive(log, handler, conf.Provider.VerificationToken))
	})

	if opts.Files != nil {
		router.Get("/files/*", files.Download(log, opts.Files))
	}

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(render.SetContentType(render.ContentTypeJSON))

		v1.Post("/auth/login", auth.Login(log, handler))

		if opts.Hub != nil {
			v1.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
				ws.ServeWs(opts.Hub, handler, log, w, r)
			})
		}

		v1.Group(func(protected chi.Router) {
			protected.Use(authenticate.New(log, handler))

			protected.Group(func(r chi.Router) {
				r.Use(timeout.Timeout(30))
				r.Route("/conversations", func(r chi.Router) {
					r.Get("/", conversation.List(log, handler))
					r.Get("/{key}", conversation.Get(log, handler))
					r.Post("/{key}/read", conversation.MarkRead(log, handler))
				})
				r.Route("/messages", func(r chi.Router) {
					r.Get("/", message.List(log, handler))
					r.Post("/send", message.Send(log, handler))
				})
			})

			// jobs bound their own run time
			protected.Route("/jobs", func(r chi.Router) {
				r.Get("/sync", job.Sync(log, handler, conf.Provider.SyncHours))
				r.Get("/repair-groups", job.RepairGroups(log, handler))
				r.Get("/fix-misrouted", job.FixMisrouted(log, handler))
				r.Get("/fix-attachments", job.FixAttachments(log, handler))
				r.Get("/reconcile-unread", job.ReconcileUnread(log, handler))
			})
		})
	})

	return router
}

func New(conf *config.Config, log *slog.Logger, handler Handler, opts Options) (*Server, error) {
	server := &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:           NewRouter(conf, log, handler, opts),
		ErrorLog:          httpLog,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server, nil
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *Server) Serve() error {
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", serverAddress))

	err = s.httpServer.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
