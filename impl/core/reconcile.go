package core

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/sl"
	"TextDesk/internal/metrics"
	"context"
	"fmt"
	"log/slog"
)

const JobReconcileUnread = "reconcile-unread"

// ReconcileUnread recomputes the unread count of every conversation whose
// stored counter disagrees with its messages.
func (c *Core) ReconcileUnread(ctx context.Context) (*entity.JobReport, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	report := entity.NewJobReport(JobReconcileUnread)
	conversations, err := c.repo.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	for _, conv := range conversations {
		report.Scanned++
		if conv.UnreadCount == conv.CountUnread() {
			continue
		}
		if err = c.healUnread(ctx, conv.Key); err != nil {
			report.Fail(err)
			continue
		}
		report.Count("recounted")
		metrics.RepairActionsTotal.WithLabelValues(JobReconcileUnread, "recounted").Inc()
	}
	c.log.With(
		slog.Int("scanned", report.Scanned),
		slog.Int("fixed", report.Changed),
	).Info("unread counts reconciled")
	return report.Finish(), nil
}

func (c *Core) healUnread(ctx context.Context, key string) error {
	unlock, err := c.locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()
	n, err := c.repo.RecomputeUnread(ctx, key)
	if err != nil {
		c.log.With(slog.String("key", key), sl.Err(err)).Error("recompute unread")
		return fmt.Errorf("recompute unread %s: %w", key, err)
	}
	c.log.With(slog.String("key", key), slog.Int("unread", n)).Debug("unread count healed")
	return nil
}
