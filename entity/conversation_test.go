package entity

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func msgAt(id string, offset time.Duration, dir Direction, rs ReadStatus) Message {
	return Message{ID: id, Direction: dir, ReadStatus: rs, CreationTime: t0.Add(offset)}
}

func TestConversation_InsertKeepsCreationOrder(t *testing.T) {
	c := &Conversation{Key: "+15551234567"}

	require.True(t, c.Insert(msgAt("b", 2*time.Minute, DirectionInbound, ReadStatusUnread)))
	require.True(t, c.Insert(msgAt("a", time.Minute, DirectionInbound, ReadStatusRead)))
	require.True(t, c.Insert(msgAt("c", 3*time.Minute, DirectionOutbound, ReadStatusRead)))
	require.True(t, c.Insert(msgAt("b2", 2*time.Minute, DirectionInbound, ReadStatusUnread)))

	ids := make([]string, 0, len(c.Messages))
	for _, m := range c.Messages {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"a", "b", "b2", "c"}, ids)
	assert.Equal(t, 2, c.UnreadCount)
	assert.Equal(t, t0.Add(3*time.Minute), c.LastMessageTime)
}

func TestConversation_InsertRejectsDuplicate(t *testing.T) {
	c := &Conversation{}
	assert.True(t, c.Insert(msgAt("a", 0, DirectionInbound, ReadStatusUnread)))
	assert.False(t, c.Insert(msgAt("a", time.Hour, DirectionInbound, ReadStatusUnread)))
	assert.Len(t, c.Messages, 1)
}

func TestConversation_RemoveRefreshes(t *testing.T) {
	c := &Conversation{}
	c.Insert(msgAt("a", 0, DirectionInbound, ReadStatusUnread))
	c.Insert(msgAt("b", time.Minute, DirectionInbound, ReadStatusUnread))

	assert.True(t, c.Remove("b"))
	assert.False(t, c.Remove("b"))
	assert.Equal(t, 1, c.UnreadCount)
	assert.Equal(t, t0, c.LastMessageTime)
}

func TestConversation_OutboundNeverUnread(t *testing.T) {
	c := &Conversation{}
	c.Insert(msgAt("a", 0, DirectionOutbound, ReadStatusUnread))
	assert.Equal(t, 0, c.CountUnread())
}

func TestIsFallbackKey(t *testing.T) {
	assert.True(t, IsFallbackKey("+15551234567,+15559876543"))
	assert.False(t, IsFallbackKey("1234567890"))
}

func TestMessage_Enrich(t *testing.T) {
	stored := Message{
		ID:         "m1",
		ReadStatus: ReadStatusUnread,
		Attachments: []Attachment{
			{ID: "a1", RelayStatus: RelayFailed},
			{ID: "a2", URL: "https://blob/a2", RelayStatus: RelayDone},
		},
	}
	newer := Message{
		ID:         "m1",
		ReadStatus: ReadStatusRead,
		Attachments: []Attachment{
			{ID: "a1", URL: "https://blob/a1", RelayStatus: RelayDone},
			{ID: "a2", URL: "https://other/a2", RelayStatus: RelayDone},
		},
	}

	assert.True(t, stored.Enrich(newer))
	assert.Equal(t, ReadStatusRead, stored.ReadStatus)
	assert.Equal(t, "https://blob/a1", stored.Attachments[0].URL)
	assert.Equal(t, "https://blob/a2", stored.Attachments[1].URL)

	assert.False(t, stored.Enrich(newer))
}

func TestAttachment_Retryable(t *testing.T) {
	assert.True(t, Attachment{ProviderURI: "u", RelayStatus: RelayPending}.Retryable(false))
	assert.False(t, Attachment{ProviderURI: "u", RelayStatus: RelayFailed}.Retryable(false))
	assert.True(t, Attachment{ProviderURI: "u", RelayStatus: RelayFailed}.Retryable(true))
	assert.False(t, Attachment{ProviderURI: "u", RelayStatus: RelayFailed, FailureReason: FailureTooLarge}.Retryable(true))
	assert.False(t, Attachment{ProviderURI: "u", URL: "x", RelayStatus: RelayDone}.Retryable(true))
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, MediaImage, ClassOf("image/jpeg"))
	assert.Equal(t, MediaVideo, ClassOf("Video/MP4"))
	assert.Equal(t, MediaText, ClassOf("text/plain; charset=utf-8"))
	assert.Equal(t, MediaOther, ClassOf("application/pdf"))
	assert.Equal(t, MediaText, AttachmentDescriptor{Type: "Text", ContentType: "image/png"}.Class())
}
