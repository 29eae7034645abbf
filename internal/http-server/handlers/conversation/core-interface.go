package conversation

import (
	"TextDesk/entity"
	"context"
)

type Core interface {
	ListConversations(ctx context.Context) ([]entity.ConversationSummary, error)
	GetConversation(ctx context.Context, key string) (*entity.Conversation, error)
	MarkRead(ctx context.Context, username, key string) (int, error)
}
