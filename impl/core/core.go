package core

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/keylock"
	"TextDesk/internal/lib/sl"
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	ErrMalformedEvent       = errors.New("malformed event")
	ErrNoParticipants       = errors.New("event has no participants besides the system number")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoDestination        = errors.New("no destination number")
	ErrEmptyMessage         = errors.New("message has neither text nor files")
	ErrTooLarge             = errors.New("attachments exceed the multimedia message size limit")
	ErrUnauthorized         = errors.New("unauthorized")
)

type Repository interface {
	GetConversation(ctx context.Context, key string) (*entity.Conversation, error)
	FindConversationByProviderID(ctx context.Context, providerID string) (*entity.Conversation, error)
	ListConversations(ctx context.Context) ([]entity.Conversation, error)
	ListSummaries(ctx context.Context) ([]entity.ConversationSummary, error)

	EnsureConversation(ctx context.Context, seed entity.Conversation) (bool, error)
	DeleteConversationIfEmpty(ctx context.Context, key string) (bool, error)
	RecomputeUnread(ctx context.Context, key string) (int, error)
	MarkConversationRead(ctx context.Context, key string) ([]string, error)

	AppendMessage(ctx context.Context, key string, msg entity.Message) (bool, error)
	ReplaceMessage(ctx context.Context, key string, msg entity.Message) error
	RemoveMessage(ctx context.Context, key, messageID string) (bool, error)

	ClaimMessage(ctx context.Context, messageID, key string) (string, bool, error)
	SetMessageOwner(ctx context.Context, messageID, key string) error
	MessageOwner(ctx context.Context, messageID string) (string, error)
}

type Provider interface {
	ParseWebhook(data []byte) ([]entity.DecodedEvent, error)
	ListMessages(ctx context.Context, since time.Time) ([]entity.SmsEvent, error)
	Send(ctx context.Context, msg entity.OutboundMessage) (entity.SmsEvent, error)
	MarkRead(ctx context.Context, messageID string) error
}

type Relay interface {
	Relay(ctx context.Context, messageID string, parts []entity.AttachmentDescriptor, existing []entity.Attachment) []entity.Attachment
	Store(ctx context.Context, file entity.OutboundFile) (entity.Attachment, error)
}

type Locker interface {
	Lock(ctx context.Context, keys ...string) (keylock.Unlocker, error)
}

type MessagesHub interface {
	BroadcastMessage(key string, msg entity.Message)
	BroadcastConversation(summary entity.ConversationSummary)
	BroadcastDeleted(key string)
	BroadcastRead(username, key string)
}

type admin struct {
	username string
	password string
	secret   string
	ttl      time.Duration
}

type Core struct {
	repo       Repository
	provider   Provider
	relay      Relay
	locker     Locker
	hub        MessagesHub
	ownNumber  string
	authKey    string
	admin      admin
	jobTimeout time.Duration
	maxBytes   int64
	now        func() time.Time
	log        *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		locker:     keylock.NewLocal(),
		jobTimeout: 5 * time.Minute,
		maxBytes:   entity.MaxMmsSize,
		now:        time.Now,
		log:        log.With(sl.Module("core")),
	}
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetProvider(provider Provider) {
	c.provider = provider
}

func (c *Core) SetRelay(relay Relay) {
	c.relay = relay
}

func (c *Core) SetLocker(locker Locker) {
	c.locker = locker
}

func (c *Core) SetMessagesHub(hub MessagesHub) {
	c.hub = hub
}

// SetOwnNumber sets the system's phone number; it is never a participant.
func (c *Core) SetOwnNumber(number string) {
	c.ownNumber = number
}

func (c *Core) SetAuthKey(key string) {
	c.authKey = key
}

func (c *Core) SetAdmin(username, password, secret string, ttl time.Duration) {
	c.admin = admin{
		username: username,
		password: password,
		secret:   secret,
		ttl:      ttl,
	}
}

func (c *Core) SetJobTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.jobTimeout = timeout
	}
}

// SetMaxAttachmentBytes caps the total size of files on one outbound message.
func (c *Core) SetMaxAttachmentBytes(n int64) {
	if n > 0 {
		c.maxBytes = n
	}
}

func (c *Core) notifyMessage(ctx context.Context, key string, msg entity.Message) {
	if c.hub == nil {
		return
	}
	c.hub.BroadcastMessage(key, msg)
	c.notifyConversation(ctx, key)
}

func (c *Core) notifyConversation(ctx context.Context, key string) {
	if c.hub == nil {
		return
	}
	conv, err := c.repo.GetConversation(ctx, key)
	if err != nil || conv == nil {
		return
	}
	c.hub.BroadcastConversation(conv.Summary())
}

func (c *Core) notifyDeleted(key string) {
	if c.hub != nil {
		c.hub.BroadcastDeleted(key)
	}
}
