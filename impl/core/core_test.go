package core

import (
	"TextDesk/entity"
	"TextDesk/internal/memstore"
	"TextDesk/internal/service/sms-gateway"
	"context"
	"errors"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	own   = "+15550001111"
	alice = "+15550002222"
	bob   = "+15550003333"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu       sync.Mutex
	listed   []entity.SmsEvent
	sent     []entity.OutboundMessage
	reply    entity.SmsEvent
	sendErr  error
	readIDs  []string
	readErr  error
	listErr  error
	listFrom time.Time
}

func (f *fakeProvider) ParseWebhook(data []byte) ([]entity.DecodedEvent, error) {
	return sms_gateway.ParseWebhook(data)
}

func (f *fakeProvider) ListMessages(_ context.Context, since time.Time) ([]entity.SmsEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFrom = since
	return f.listed, f.listErr
}

func (f *fakeProvider) Send(_ context.Context, msg entity.OutboundMessage) (entity.SmsEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.reply, f.sendErr
}

func (f *fakeProvider) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readIDs = append(f.readIDs, id)
	return f.readErr
}

// fakeRelay relays every media part unless its uri contains "fail" while failing is set.
type fakeRelay struct {
	mu      sync.Mutex
	failing bool
	calls   int
}

func (f *fakeRelay) Relay(_ context.Context, messageID string, parts []entity.AttachmentDescriptor, existing []entity.Attachment) []entity.Attachment {
	f.mu.Lock()
	defer f.mu.Unlock()
	known := make(map[string]entity.Attachment)
	for _, a := range existing {
		known[a.ID] = a
	}
	var out []entity.Attachment
	for _, p := range parts {
		if p.Class() == entity.MediaText {
			continue
		}
		if a, ok := known[p.ID]; ok && a.Relayed() {
			out = append(out, a)
			continue
		}
		f.calls++
		if f.failing && strings.Contains(p.URI, "fail") {
			out = append(out, entity.Attachment{
				ID: p.ID, ContentType: p.ContentType, ProviderURI: p.URI,
				Filename: entity.FailedFilename(p.Filename), RelayStatus: entity.RelayFailed, FailureReason: "status 500",
			})
			continue
		}
		out = append(out, entity.Attachment{
			ID: p.ID, ContentType: p.ContentType, ProviderURI: p.URI, Filename: p.Filename,
			URL: "https://cdn.example.com/attachments/" + messageID + "/" + p.ID, RelayStatus: entity.RelayDone,
		})
	}
	return out
}

func (f *fakeRelay) Store(_ context.Context, file entity.OutboundFile) (entity.Attachment, error) {
	return entity.Attachment{
		ID: "out-" + file.Filename, ContentType: file.ContentType, Filename: file.Filename,
		URL: "https://cdn.example.com/outbound/" + file.Filename, Size: int64(len(file.Data)), RelayStatus: entity.RelayDone,
	}, nil
}

type hubEvent struct {
	kind string
	key  string
}

type fakeHub struct {
	mu     sync.Mutex
	events []hubEvent
}

func (h *fakeHub) add(kind, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{kind, key})
}

func (h *fakeHub) BroadcastMessage(key string, _ entity.Message) { h.add("new_message", key) }
func (h *fakeHub) BroadcastConversation(s entity.ConversationSummary) {
	h.add("conversation_updated", s.Key)
}
func (h *fakeHub) BroadcastDeleted(key string)          { h.add("conversation_deleted", key) }
func (h *fakeHub) BroadcastRead(_ string, key string)   { h.add("read", key) }

func (h *fakeHub) has(kind, key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		if e.kind == kind && e.key == key {
			return true
		}
	}
	return false
}

type fixture struct {
	core     *Core
	store    *memstore.Store
	provider *fakeProvider
	relay    *fakeRelay
	hub      *fakeHub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, memstore.New())
}

func newFixtureWith(t *testing.T, repo Repository) *fixture {
	t.Helper()
	f := &fixture{
		provider: &fakeProvider{},
		relay:    &fakeRelay{},
		hub:      &fakeHub{},
	}
	if s, ok := repo.(*memstore.Store); ok {
		f.store = s
	}
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.SetRepository(repo)
	c.SetProvider(f.provider)
	c.SetRelay(f.relay)
	c.SetMessagesHub(f.hub)
	c.SetOwnNumber(own)
	c.SetAdmin("admin", "s3cret", "session-secret", time.Hour)
	c.SetAuthKey("cron-key-123456")
	f.core = c
	return f
}

func inbound(id, from string, to []string, offset time.Duration) entity.SmsEvent {
	return entity.SmsEvent{
		MessageID:    id,
		Direction:    entity.DirectionInbound,
		From:         from,
		To:           to,
		Text:         "text " + id,
		ReadStatus:   entity.ReadStatusUnread,
		CreationTime: t0.Add(offset),
	}
}

func outbound(id string, to []string, offset time.Duration) entity.SmsEvent {
	return entity.SmsEvent{
		MessageID:    id,
		Direction:    entity.DirectionOutbound,
		From:         own,
		To:           to,
		Text:         "reply " + id,
		ReadStatus:   entity.ReadStatusRead,
		CreationTime: t0.Add(offset),
	}
}

func withConversation(e entity.SmsEvent, pid string) entity.SmsEvent {
	e.ProviderConversationID = pid
	return e
}

func (f *fixture) ingest(t *testing.T, e entity.SmsEvent) entity.IngestResult {
	t.Helper()
	return f.core.IngestEvent(context.Background(), SourceWebhook, e)
}

func (f *fixture) conversation(t *testing.T, key string) *entity.Conversation {
	t.Helper()
	c, err := f.store.GetConversation(context.Background(), key)
	require.NoError(t, err)
	return c
}

func (f *fixture) locations(t *testing.T, messageID string) []string {
	t.Helper()
	all, err := f.store.ListConversations(context.Background())
	require.NoError(t, err)
	var keys []string
	for _, c := range all {
		if c.IndexOf(messageID) >= 0 {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// failingRepo fails appends into, or deletes of, one conversation.
type failingRepo struct {
	*memstore.Store
	mu         sync.Mutex
	failAppend string
	failDelete string
}

func (r *failingRepo) DeleteConversationIfEmpty(ctx context.Context, key string) (bool, error) {
	r.mu.Lock()
	fail := r.failDelete == key
	r.mu.Unlock()
	if fail {
		return false, errors.New("delete timed out")
	}
	return r.Store.DeleteConversationIfEmpty(ctx, key)
}

func (r *failingRepo) AppendMessage(ctx context.Context, key string, msg entity.Message) (bool, error) {
	r.mu.Lock()
	fail := r.failAppend == key
	r.mu.Unlock()
	if fail {
		return false, errors.New("write conflict")
	}
	return r.Store.AppendMessage(ctx, key, msg)
}
