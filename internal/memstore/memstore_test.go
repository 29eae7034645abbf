package memstore

import (
	"TextDesk/entity"
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func msg(id string, offset time.Duration, unread bool) entity.Message {
	m := entity.Message{
		ID:           id,
		Direction:    entity.DirectionInbound,
		From:         "+15550002222",
		To:           []string{"+15550001111"},
		ReadStatus:   entity.ReadStatusRead,
		CreationTime: t0.Add(offset),
	}
	if unread {
		m.ReadStatus = entity.ReadStatusUnread
	}
	return m
}

func TestEnsureConversation(t *testing.T) {
	ctx := context.Background()
	s := New()

	created, err := s.EnsureConversation(ctx, entity.Conversation{Key: "+15550002222", Participants: []string{"+15550002222"}})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureConversation(ctx, entity.Conversation{Key: "+15550002222", ProviderConversationID: "c-1"})
	require.NoError(t, err)
	assert.False(t, created)

	c, err := s.GetConversation(ctx, "+15550002222")
	require.NoError(t, err)
	assert.Equal(t, "c-1", c.ProviderConversationID)
	assert.Equal(t, []string{"+15550002222"}, c.Participants)
}

func TestGetConversation_Missing(t *testing.T) {
	c, err := New().GetConversation(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestAppendAndRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.AppendMessage(ctx, "missing", msg("m1", 0, true))
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, _ = s.EnsureConversation(ctx, entity.Conversation{Key: "k"})
	ok, err := s.AppendMessage(ctx, "k", msg("m2", time.Minute, true))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.AppendMessage(ctx, "k", msg("m1", 0, false))
	assert.True(t, ok)
	ok, _ = s.AppendMessage(ctx, "k", msg("m1", 0, false))
	assert.False(t, ok)

	c, _ := s.GetConversation(ctx, "k")
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "m1", c.Messages[0].ID)
	assert.Equal(t, 1, c.UnreadCount)

	removed, err := s.RemoveMessage(ctx, "k", "m2")
	require.NoError(t, err)
	assert.True(t, removed)

	deleted, _ := s.DeleteConversationIfEmpty(ctx, "k")
	assert.False(t, deleted)
	_, _ = s.RemoveMessage(ctx, "k", "m1")
	deleted, _ = s.DeleteConversationIfEmpty(ctx, "k")
	assert.True(t, deleted)
}

func TestReturnedCopiesAreDetached(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.EnsureConversation(ctx, entity.Conversation{Key: "k"})
	_, _ = s.AppendMessage(ctx, "k", msg("m1", 0, true))

	c, _ := s.GetConversation(ctx, "k")
	c.Messages[0].ReadStatus = entity.ReadStatusRead

	again, _ := s.GetConversation(ctx, "k")
	assert.Equal(t, entity.ReadStatusUnread, again.Messages[0].ReadStatus)
}

func TestMarkConversationRead(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.EnsureConversation(ctx, entity.Conversation{Key: "k"})
	_, _ = s.AppendMessage(ctx, "k", msg("m1", 0, true))
	_, _ = s.AppendMessage(ctx, "k", msg("m2", time.Second, false))
	_, _ = s.AppendMessage(ctx, "k", msg("m3", 2*time.Second, true))

	ids, err := s.MarkConversationRead(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m3"}, ids)

	n, err := s.RecomputeUnread(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClaimMessage(t *testing.T) {
	ctx := context.Background()
	s := New()

	owner, claimed, err := s.ClaimMessage(ctx, "m1", "a")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "a", owner)

	owner, claimed, _ = s.ClaimMessage(ctx, "m1", "b")
	assert.False(t, claimed)
	assert.Equal(t, "a", owner)

	require.NoError(t, s.SetMessageOwner(ctx, "m1", "b"))
	owner, _ = s.MessageOwner(ctx, "m1")
	assert.Equal(t, "b", owner)
}

func TestListSummaries_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.EnsureConversation(ctx, entity.Conversation{Key: "old"})
	_, _ = s.EnsureConversation(ctx, entity.Conversation{Key: "new"})
	_, _ = s.AppendMessage(ctx, "old", msg("m1", 0, false))
	_, _ = s.AppendMessage(ctx, "new", msg("m2", time.Hour, true))

	list, err := s.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Key)
	assert.Equal(t, 1, list[0].UnreadCount)
}

func TestFindConversationByProviderID(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.EnsureConversation(ctx, entity.Conversation{Key: "+15550002222", ProviderConversationID: "c-9"})

	c, err := s.FindConversationByProviderID(ctx, "c-9")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "+15550002222", c.Key)

	c, _ = s.FindConversationByProviderID(ctx, "c-0")
	assert.Nil(t, c)
}
