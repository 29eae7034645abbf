package webhook

import (
	"TextDesk/entity"
	"context"
)

type Core interface {
	IngestWebhook(ctx context.Context, payload []byte) ([]entity.IngestResult, error)
}
