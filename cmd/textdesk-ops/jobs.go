package main

import (
	"TextDesk/entity"
	"TextDesk/impl/core"
	"TextDesk/internal/bootstrap"
	"context"
	"fmt"
	"github.com/spf13/cobra"
	"time"
)

func syncCmd() *cobra.Command {
	var hours int
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Re-read recent provider history and reconcile conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if hours <= 0 {
				return fmt.Errorf("--hours must be positive")
			}
			return runJob(cmd, core.JobSync, func(ctx context.Context, app *bootstrap.App) (*entity.JobReport, error) {
				return app.Core.SyncRecent(ctx, time.Duration(hours)*time.Hour)
			})
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 24, "history window in hours")
	return cmd
}

func repairGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair-groups",
		Short: "Merge participant-keyed conversations into provider-keyed ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, core.JobRepairGroups, func(ctx context.Context, app *bootstrap.App) (*entity.JobReport, error) {
				return app.Core.RepairGroups(ctx)
			})
		},
	}
}

func fixMisroutedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fix-misrouted",
		Short: "Remove duplicate message copies and repair message ownership",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, core.JobFixMisrouted, func(ctx context.Context, app *bootstrap.App) (*entity.JobReport, error) {
				return app.Core.FixMisrouted(ctx)
			})
		},
	}
}

func fixAttachmentsCmd() *cobra.Command {
	var retryFailed bool
	cmd := &cobra.Command{
		Use:   "fix-attachments",
		Short: "Relay attachments that were never stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, core.JobFixAttachments, func(ctx context.Context, app *bootstrap.App) (*entity.JobReport, error) {
				return app.Core.FixAttachments(ctx, retryFailed)
			})
		},
	}
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "also retry attachments that failed before")
	return cmd
}

func reconcileUnreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-unread",
		Short: "Recompute every conversation's unread count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, core.JobReconcileUnread, func(ctx context.Context, app *bootstrap.App) (*entity.JobReport, error) {
				return app.Core.ReconcileUnread(ctx)
			})
		},
	}
}

// keyCmd prints the participant-derived conversation key for a set of numbers.
func keyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key NUMBER...",
		Short: "Print the conversation key for a set of phone numbers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := core.FallbackKey(args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}
}
