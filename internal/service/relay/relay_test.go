package relay

import (
	"TextDesk/entity"
	"TextDesk/internal/storage"
	"bytes"
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("no token")
	}
	return string(s), nil
}

type brokenStore struct{}

func (brokenStore) Put(context.Context, string, string, io.Reader, int64) (string, error) {
	return "", errors.New("bucket unavailable")
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func provider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/img":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngBytes)
		case "/big":
			_, _ = w.Write(bytes.Repeat([]byte{'x'}, 2048))
		case "/capped":
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write(pngBytes)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRelay_MixedParts(t *testing.T) {
	srv := provider(t)
	store := storage.NewMemory("https://cdn.example.com")
	r := New(store, staticToken("tok"), time.Second, 1024, quietLog())

	parts := []entity.AttachmentDescriptor{
		{ID: "t", URI: srv.URL + "/text", Type: "Text", ContentType: "text/plain"},
		{ID: "a1", URI: srv.URL + "/img", ContentType: "image/png", Filename: "photo.png"},
		{ID: "a2", URI: srv.URL + "/gone", ContentType: "image/jpeg", Filename: "lost.jpg"},
		{ID: "v", URI: srv.URL + "/vcard", ContentType: "text/vcard"},
		{ID: "pdf", URI: srv.URL + "/pdf", ContentType: "application/pdf", Filename: "quote.pdf"},
	}
	out := r.Relay(context.Background(), "m1", parts, nil)

	require.Len(t, out, 3)
	assert.Equal(t, "a1", out[0].ID)
	assert.Equal(t, entity.RelayDone, out[0].RelayStatus)
	assert.Equal(t, "https://cdn.example.com/attachments/m1/a1.png", out[0].URL)
	assert.Equal(t, int64(len(pngBytes)), out[0].Size)

	assert.Equal(t, "a2", out[1].ID)
	assert.Equal(t, entity.RelayFailed, out[1].RelayStatus)
	assert.Empty(t, out[1].URL)
	assert.Equal(t, "lost.jpg (failed to save)", out[1].Filename)
	assert.Contains(t, out[1].FailureReason, "404")

	assert.Equal(t, "pdf", out[2].ID)
	assert.Equal(t, entity.RelaySkipped, out[2].RelayStatus)

	_, ok := store.Get("attachments/m1/a1.png")
	assert.True(t, ok)
}

func TestRelay_TooLarge(t *testing.T) {
	srv := provider(t)
	r := New(storage.NewMemory("x"), staticToken("tok"), time.Second, 1024, quietLog())

	out := r.Relay(context.Background(), "m1", []entity.AttachmentDescriptor{
		{ID: "big", URI: srv.URL + "/big", ContentType: "video/mp4"},
		{ID: "cap", URI: srv.URL + "/capped", ContentType: "video/mp4"},
	}, nil)

	require.Len(t, out, 2)
	for _, a := range out {
		assert.Equal(t, entity.RelayFailed, a.RelayStatus)
		assert.Equal(t, entity.FailureTooLarge, a.FailureReason)
		assert.False(t, a.Retryable(true))
	}
}

func TestRelay_ReusesRelayedAttachment(t *testing.T) {
	store := storage.NewMemory("x")
	r := New(store, staticToken("tok"), time.Second, 1024, quietLog())
	existing := []entity.Attachment{{ID: "a1", URL: "https://cdn/a1.png", RelayStatus: entity.RelayDone}}

	out := r.Relay(context.Background(), "m1", []entity.AttachmentDescriptor{
		{ID: "a1", URI: "http://127.0.0.1:1/unreachable", ContentType: "image/png"},
	}, existing)

	require.Len(t, out, 1)
	assert.Equal(t, "https://cdn/a1.png", out[0].URL)
	assert.Zero(t, store.Puts())
}

func TestRelay_SameKeyOnRetry(t *testing.T) {
	srv := provider(t)
	store := storage.NewMemory("x")
	r := New(store, staticToken("tok"), time.Second, 1024, quietLog())
	parts := []entity.AttachmentDescriptor{{ID: "a1", URI: srv.URL + "/img", ContentType: "image/png"}}

	first := r.Relay(context.Background(), "m1", parts, nil)
	second := r.Relay(context.Background(), "m1", parts, nil)

	assert.Equal(t, first[0].URL, second[0].URL)
	assert.Len(t, store.Keys(), 1)
}

func TestRelay_SniffsGenericType(t *testing.T) {
	srv := provider(t)
	r := New(storage.NewMemory("x"), staticToken("tok"), time.Second, 1024, quietLog())

	out := r.Relay(context.Background(), "m1", []entity.AttachmentDescriptor{
		{ID: "a1", URI: srv.URL + "/img", ContentType: "application/octet-stream"},
	}, nil)

	require.Len(t, out, 1)
	assert.Equal(t, "image/png", out[0].ContentType)
	assert.Equal(t, entity.RelayDone, out[0].RelayStatus)
}

func TestRelay_TimeoutAndStorageFailure(t *testing.T) {
	srv := provider(t)

	r := New(storage.NewMemory("x"), staticToken("tok"), 50*time.Millisecond, 1024, quietLog())
	out := r.Relay(context.Background(), "m1", []entity.AttachmentDescriptor{
		{ID: "a1", URI: srv.URL + "/slow", ContentType: "image/png"},
	}, nil)
	require.Len(t, out, 1)
	assert.Equal(t, entity.RelayFailed, out[0].RelayStatus)
	assert.True(t, out[0].Retryable(true))

	r = New(brokenStore{}, staticToken("tok"), time.Second, 1024, quietLog())
	out = r.Relay(context.Background(), "m1", []entity.AttachmentDescriptor{
		{ID: "a1", URI: srv.URL + "/img", ContentType: "image/png"},
	}, nil)
	assert.Equal(t, entity.RelayFailed, out[0].RelayStatus)
	assert.Contains(t, out[0].FailureReason, "bucket unavailable")
}

func TestRelay_TokenFailure(t *testing.T) {
	r := New(storage.NewMemory("x"), staticToken(""), time.Second, 1024, quietLog())
	out := r.Relay(context.Background(), "m1", []entity.AttachmentDescriptor{
		{ID: "a1", URI: "http://provider/img", ContentType: "image/png"},
	}, nil)
	require.Len(t, out, 1)
	assert.Equal(t, entity.RelayFailed, out[0].RelayStatus)
	assert.Contains(t, out[0].FailureReason, "access token")
}

func TestStore(t *testing.T) {
	store := storage.NewMemory("https://cdn.example.com")
	r := New(store, staticToken("tok"), time.Second, 1024, quietLog())

	a, err := r.Store(context.Background(), entity.OutboundFile{Filename: "Card.PNG", Data: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.ContentType)
	assert.True(t, strings.HasPrefix(a.URL, "https://cdn.example.com/outbound/"))
	assert.True(t, strings.HasSuffix(a.URL, ".png"))
	assert.Equal(t, "Card.PNG", a.Filename)

	_, err = r.Store(context.Background(), entity.OutboundFile{Filename: "big.png", ContentType: "image/png", Data: make([]byte, 2048)})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = r.Store(context.Background(), entity.OutboundFile{Filename: "notes.txt", Data: []byte("hello")})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRelay_CancelledLeavesPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(storage.NewMemory("x"), staticToken("tok"), time.Second, 1024, quietLog())

	out := r.Relay(ctx, "m1", []entity.AttachmentDescriptor{
		{ID: "a1", URI: "http://provider/img", ContentType: "image/png"},
	}, nil)
	require.Len(t, out, 1)
	assert.Equal(t, entity.RelayPending, out[0].RelayStatus)
	assert.True(t, out[0].Retryable(false))
}
