package core

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/phone"
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestSendMessage_FilesSentRecord(t *testing.T) {
	f := newFixture(t)
	f.provider.reply = entity.SmsEvent{
		MessageID:              "s1",
		ProviderConversationID: "c-1",
		Direction:              entity.DirectionOutbound,
		From:                   own,
		To:                     []string{alice, bob},
		Attachments:            []entity.AttachmentDescriptor{{ID: "p1", URI: "https://media/p1", ContentType: "image/png"}},
		CreationTime:           t0,
	}

	res, err := f.core.SendMessage(context.Background(), []string{"555-000-3333", "(555) 000-2222"}, "hello", []entity.OutboundFile{
		{Filename: "card.png", ContentType: "image/png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, "c-1", res.ConversationKey)
	assert.Equal(t, entity.OutcomeInserted, res.Outcome)

	require.Len(t, f.provider.sent, 1)
	sent := f.provider.sent[0]
	assert.Equal(t, own, sent.From)
	assert.Equal(t, []string{alice, bob}, sent.To)
	require.Len(t, sent.Files, 1)

	conv := f.conversation(t, "c-1")
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 1)
	msg := conv.Messages[0]
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, entity.ReadStatusRead, msg.ReadStatus)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "https://cdn.example.com/outbound/card.png", msg.Attachments[0].URL)
	assert.Zero(t, f.relay.calls)
	assert.Zero(t, conv.UnreadCount)
}

func TestSendMessage_SyncKeepsStoredAttachment(t *testing.T) {
	f := newFixture(t)
	f.core.now = func() time.Time { return t0.Add(time.Minute) }
	record := entity.SmsEvent{
		MessageID:              "s3",
		ProviderConversationID: "c-3",
		Direction:              entity.DirectionOutbound,
		From:                   own,
		To:                     []string{alice},
		Attachments: []entity.AttachmentDescriptor{
			{ID: "t1", Type: "Text", ContentType: "text/plain"},
			{ID: "p1", URI: "https://media/p1", ContentType: "image/png"},
		},
		CreationTime: t0,
	}
	f.provider.reply = record
	f.provider.listed = []entity.SmsEvent{record}

	_, err := f.core.SendMessage(context.Background(), []string{alice}, "look", []entity.OutboundFile{
		{Filename: "card.png", ContentType: "image/png", Data: []byte("png")},
	})
	require.NoError(t, err)

	report, err := f.core.SyncRecent(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)

	conv := f.conversation(t, "c-3")
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 1)
	atts := conv.Messages[0].Attachments
	require.Len(t, atts, 1)
	assert.Equal(t, "p1", atts[0].ID)
	assert.Equal(t, "https://media/p1", atts[0].ProviderURI)
	assert.Equal(t, "https://cdn.example.com/outbound/card.png", atts[0].URL)
	assert.Zero(t, f.relay.calls)
}

func TestMatchProviderParts(t *testing.T) {
	stored := []entity.Attachment{{ID: "out-a", URL: "u-a"}, {ID: "out-b", URL: "u-b"}}
	parts := []entity.AttachmentDescriptor{
		{Type: "Text", ContentType: "text/plain"},
		{ContentType: "image/png", URI: "https://media/x"},
	}

	got := matchProviderParts(stored, parts)
	require.Len(t, got, 2)
	assert.Equal(t, "part-1", got[0].ID)
	assert.Equal(t, "https://media/x", got[0].ProviderURI)
	assert.Equal(t, "out-b", got[1].ID)
	assert.Equal(t, "out-a", stored[0].ID)
}

func TestSendMessage_TextOnlyFallbackKey(t *testing.T) {
	f := newFixture(t)
	f.core.now = func() time.Time { return t0 }
	f.provider.reply = entity.SmsEvent{MessageID: "s2"}

	res, err := f.core.SendMessage(context.Background(), []string{alice}, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, alice, res.ConversationKey)
	assert.Equal(t, t0, res.Message.CreationTime)

	// the webhook copy of the same send is a duplicate
	r := f.ingest(t, outbound("s2", []string{alice}, 0))
	assert.Equal(t, entity.OutcomeDuplicate, r.Outcome)
	assert.Len(t, f.conversation(t, alice).Messages, 1)
}

func TestSendMessage_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.core.SendMessage(ctx, []string{alice}, "", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = f.core.SendMessage(ctx, []string{"12345"}, "hi", nil)
	assert.ErrorIs(t, err, phone.ErrInvalidNumber)
	assert.True(t, IsClientError(err))

	_, err = f.core.SendMessage(ctx, []string{own}, "hi", nil)
	assert.ErrorIs(t, err, ErrNoDestination)

	_, err = f.core.SendMessage(ctx, nil, "hi", nil)
	assert.ErrorIs(t, err, ErrNoDestination)

	_, err = f.core.SendMessage(ctx, []string{alice}, "", []entity.OutboundFile{
		{Filename: "a.mp4", Data: make([]byte, entity.MaxMmsSize)},
		{Filename: "b.mp4", Data: make([]byte, 1)},
	})
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, f.provider.sent)
}

func TestSendMessage_ProviderError(t *testing.T) {
	f := newFixture(t)
	f.provider.sendErr = errors.New("status 400")

	_, err := f.core.SendMessage(context.Background(), []string{alice}, "hi", nil)
	assert.ErrorContains(t, err, "status 400")
	assert.Nil(t, f.conversation(t, alice))
}
