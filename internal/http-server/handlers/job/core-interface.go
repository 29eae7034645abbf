package job

import (
	"TextDesk/entity"
	"context"
	"time"
)

type Core interface {
	SyncRecent(ctx context.Context, window time.Duration) (*entity.JobReport, error)
	RepairGroups(ctx context.Context) (*entity.JobReport, error)
	FixMisrouted(ctx context.Context) (*entity.JobReport, error)
	FixAttachments(ctx context.Context, retryFailed bool) (*entity.JobReport, error)
	ReconcileUnread(ctx context.Context) (*entity.JobReport, error)
}
