// Command textdesk-ops runs the conversation repair jobs from a shell or cron,
// against the same store the service uses.
package main

import (
	"TextDesk/entity"
	"TextDesk/internal/bootstrap"
	"TextDesk/internal/config"
	"TextDesk/internal/lib/sl"
	"context"
	"encoding/json"
	"fmt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var (
	configPath string
	logPath    string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "textdesk-ops",
		Short:        "Maintenance jobs for TextDesk conversations",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "conf", "c", "config.yml", "path to config file")
	root.PersistentFlags().StringVar(&logPath, "log", "/var/log/", "path to log file directory")

	root.AddCommand(syncCmd())
	root.AddCommand(repairGroupsCmd())
	root.AddCommand(fixMisroutedCmd())
	root.AddCommand(fixAttachmentsCmd())
	root.AddCommand(reconcileUnreadCmd())
	root.AddCommand(keyCmd())
	return root
}

type job func(ctx context.Context, app *bootstrap.App) (*entity.JobReport, error)

// runJob builds the core from config, runs one job and prints its report.
func runJob(cmd *cobra.Command, name string, fn job) error {
	conf := config.MustLoad(configPath)
	lg := bootstrap.Logger(conf, logPath).With(
		sl.Module("ops"),
		slog.String("run_id", uuid.NewString()),
		slog.String("job", name),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, conf, lg)
	if err != nil {
		return err
	}
	defer app.Close()

	lg.Info("job started")
	report, err := fn(ctx, app)
	if err != nil {
		lg.Error("job failed", sl.Err(err))
		return err
	}
	lg.With(
		slog.Int("scanned", report.Scanned),
		slog.Int("changed", report.Changed),
		slog.Int("errors", len(report.Errors)),
	).Info("job finished")
	return printReport(cmd.OutOrStdout(), report)
}

func printReport(w io.Writer, report *entity.JobReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
