package job

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/api/response"
	"TextDesk/internal/lib/sl"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const maxSyncHours = 24 * 31

type runner func(r *http.Request) (*entity.JobReport, error)

func run(log *slog.Logger, name string, fn runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.job"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("job", name),
		)

		report, err := fn(r)
		if err != nil {
			logger.Error("job failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Job failed: "+err.Error()))
			return
		}
		logger.With(
			slog.Int("scanned", report.Scanned),
			slog.Int("changed", report.Changed),
			slog.Int("errors", len(report.Errors)),
		).Info("job finished")
		render.JSON(w, r, response.Ok(report))
	}
}

// Sync re-polls the provider for the last ?hours=N (default defaultHours).
func Sync(log *slog.Logger, handler Core, defaultHours int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours := defaultHours
		if raw := r.URL.Query().Get("hours"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > maxSyncHours {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("hours must be between 1 and "+strconv.Itoa(maxSyncHours)))
				return
			}
			hours = n
		}
		run(log, "sync", func(r *http.Request) (*entity.JobReport, error) {
			return handler.SyncRecent(r.Context(), time.Duration(hours)*time.Hour)
		})(w, r)
	}
}

func RepairGroups(log *slog.Logger, handler Core) http.HandlerFunc {
	return run(log, "repair-groups", func(r *http.Request) (*entity.JobReport, error) {
		return handler.RepairGroups(r.Context())
	})
}

func FixMisrouted(log *slog.Logger, handler Core) http.HandlerFunc {
	return run(log, "fix-misrouted", func(r *http.Request) (*entity.JobReport, error) {
		return handler.FixMisrouted(r.Context())
	})
}

// FixAttachments relays pending attachments; ?retry_failed=1 includes failed ones.
func FixAttachments(log *slog.Logger, handler Core) http.HandlerFunc {
	return run(log, "fix-attachments", func(r *http.Request) (*entity.JobReport, error) {
		retry, _ := strconv.ParseBool(r.URL.Query().Get("retry_failed"))
		return handler.FixAttachments(r.Context(), retry)
	})
}

func ReconcileUnread(log *slog.Logger, handler Core) http.HandlerFunc {
	return run(log, "reconcile-unread", func(r *http.Request) (*entity.JobReport, error) {
		return handler.ReconcileUnread(r.Context())
	})
}
