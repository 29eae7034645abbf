package core

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestGetConversation_HealsUnread(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, inbound("m1", alice, []string{own}, 0))
	f.store.SetUnreadCount(alice, 4)

	conv, err := f.core.GetConversation(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, 1, f.conversation(t, alice).UnreadCount)

	_, err = f.core.GetConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ingest(t, inbound("m1", alice, []string{own}, 0))
	f.ingest(t, outbound("m2", []string{alice}, time.Minute))
	f.ingest(t, inbound("m3", alice, []string{own}, 2*time.Minute))
	f.provider.readErr = errors.New("provider timeout")

	n, err := f.core.MarkRead(ctx, "admin", alice)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"m1", "m3"}, f.provider.readIDs)
	assert.Zero(t, f.conversation(t, alice).UnreadCount)
	assert.True(t, f.hub.has("read", alice))

	_, err = f.core.MarkRead(ctx, "admin", "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	require.NoError(t, f.core.HandleMarkRead("admin", alice))
}

func TestListConversationsAndMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ingest(t, inbound("m1", alice, []string{own}, 0))
	f.ingest(t, inbound("m2", bob, []string{own}, time.Hour))
	f.ingest(t, inbound("m3", alice, []string{own}, time.Minute))

	list, err := f.core.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, bob, list[0].Key)
	assert.Equal(t, 2, list[1].MessageCount)
	assert.Equal(t, "text m3", list[1].LastMessage)

	all, err := f.core.GetMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, all[alice], 2)
	assert.Equal(t, "m1", all[alice][0].ID)
}
