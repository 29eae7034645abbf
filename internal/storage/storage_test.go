package storage

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestMemory_PutIsIdempotentPerKey(t *testing.T) {
	m := NewMemory("https://files.example.com/")

	u1, err := m.Put(context.Background(), "attachments/m1/a1.jpg", "image/jpeg", strings.NewReader("one"), 3)
	require.NoError(t, err)
	u2, err := m.Put(context.Background(), "attachments/m1/a1.jpg", "image/jpeg", strings.NewReader("two"), 3)
	require.NoError(t, err)

	assert.Equal(t, "https://files.example.com/attachments/m1/a1.jpg", u1)
	assert.Equal(t, u1, u2)
	obj, ok := m.Get("attachments/m1/a1.jpg")
	require.True(t, ok)
	assert.Equal(t, "two", string(obj.Data))
	assert.Equal(t, 2, m.Puts())
	assert.Len(t, m.Keys(), 1)
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory("x").Put(ctx, "k", "text/plain", strings.NewReader(""), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJoinURL_EscapesSegments(t *testing.T) {
	assert.Equal(t, "http://h/files/outbound/a%20b.png", joinURL("http://h/files", "outbound/a b.png"))
}
