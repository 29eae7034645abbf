package message

import (
	"TextDesk/entity"
	"context"
)

type Core interface {
	GetMessages(ctx context.Context) (map[string][]entity.Message, error)
	SendMessage(ctx context.Context, to []string, text string, files []entity.OutboundFile) (*entity.SendResult, error)
}
