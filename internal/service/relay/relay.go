package relay

import (
	"TextDesk/entity"
	"TextDesk/internal/lib/sl"
	"TextDesk/internal/metrics"
	"TextDesk/internal/storage"
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/oklog/ulid/v2"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

var (
	ErrTooLarge    = errors.New("attachment exceeds size limit")
	ErrUnsupported = errors.New("unsupported attachment type")
)

// TokenProvider yields the bearer token protecting provider attachment URIs.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

type Relay struct {
	store    storage.BlobStore
	tokens   TokenProvider
	client   *resty.Client
	timeout  time.Duration
	maxBytes int64
	log      *slog.Logger
}

func New(store storage.BlobStore, tokens TokenProvider, timeout time.Duration, maxBytes int64, log *slog.Logger) *Relay {
	if maxBytes <= 0 {
		maxBytes = entity.MaxMmsSize
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Relay{
		store:    store,
		tokens:   tokens,
		client:   resty.New(),
		timeout:  timeout,
		maxBytes: maxBytes,
		log:      log.With(sl.Module("relay")),
	}
}

// Relay converts the provider parts of a message into stored attachments.
// Text parts are dropped, non-media parts become skipped placeholders and a
// failed download becomes a failed placeholder; the call itself never fails.
// Parts already relayed in existing are reused without a download.
func (r *Relay) Relay(ctx context.Context, messageID string, parts []entity.AttachmentDescriptor, existing []entity.Attachment) []entity.Attachment {
	known := make(map[string]entity.Attachment, len(existing))
	for _, a := range existing {
		known[a.ID] = a
	}

	var token string
	var tokenErr error
	tokenFetched := false

	out := make([]entity.Attachment, 0, len(parts))
	for i, part := range parts {
		if part.Class() == entity.MediaText {
			continue
		}
		part.ID = part.PartID(i)
		if a, ok := known[part.ID]; ok && a.Relayed() {
			out = append(out, a)
			continue
		}
		if !part.Class().IsBinaryMedia() && !genericType(part.ContentType) {
			out = append(out, skipped(part))
			metrics.RelayTotal.WithLabelValues(string(entity.RelaySkipped)).Inc()
			continue
		}
		if ctx.Err() != nil {
			out = append(out, pending(part))
			metrics.RelayTotal.WithLabelValues(string(entity.RelayPending)).Inc()
			continue
		}
		if !tokenFetched {
			token, tokenErr = r.tokens.AccessToken(ctx)
			tokenFetched = true
		}
		var a entity.Attachment
		if tokenErr != nil {
			a = failed(part, fmt.Errorf("access token: %w", tokenErr))
		} else {
			a = r.relayOne(ctx, token, messageID, part)
		}
		metrics.RelayTotal.WithLabelValues(string(a.RelayStatus)).Inc()
		out = append(out, a)
	}
	return out
}

func (r *Relay) relayOne(ctx context.Context, token, messageID string, part entity.AttachmentDescriptor) entity.Attachment {
	log := r.log.With(
		slog.String("message_id", messageID),
		slog.String("attachment_id", part.ID),
	)
	if part.URI == "" {
		return failed(part, fmt.Errorf("attachment has no uri"))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.download(ctx, token, part.URI)
	if err != nil {
		log.With(sl.Err(err)).Warn("attachment download failed")
		return failed(part, err)
	}

	contentType := part.ContentType
	if genericType(contentType) {
		contentType = mimetype.Detect(data).String()
		if !entity.ClassOf(contentType).IsBinaryMedia() {
			part.ContentType = contentType
			a := skipped(part)
			a.Size = int64(len(data))
			return a
		}
	}

	key := path.Join("attachments", messageID, part.ID+extension(part.Filename, contentType))
	url, err := r.store.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.With(sl.Err(err)).Error("attachment upload failed")
		return failed(part, err)
	}
	metrics.RelayBytesTotal.Add(float64(len(data)))

	filename := part.Filename
	if filename == "" {
		filename = path.Base(key)
	}
	return entity.Attachment{
		ID:          part.ID,
		ContentType: contentType,
		ProviderURI: part.URI,
		URL:         url,
		Filename:    filename,
		Size:        int64(len(data)),
		RelayStatus: entity.RelayDone,
	}
}

func (r *Relay) download(ctx context.Context, token, uri string) ([]byte, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetDoNotParseResponse(true).
		Get(uri)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	body := resp.RawBody()
	defer func() {
		_ = body.Close()
	}()

	if resp.StatusCode() == http.StatusRequestEntityTooLarge {
		return nil, ErrTooLarge
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode())
	}
	if resp.RawResponse.ContentLength > r.maxBytes {
		return nil, ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Store uploads a manager-supplied file for an outbound MMS.
func (r *Relay) Store(ctx context.Context, file entity.OutboundFile) (entity.Attachment, error) {
	if int64(len(file.Data)) > r.maxBytes {
		return entity.Attachment{}, ErrTooLarge
	}
	contentType := file.ContentType
	if genericType(contentType) {
		contentType = mimetype.Detect(file.Data).String()
	}
	if !entity.ClassOf(contentType).IsBinaryMedia() {
		return entity.Attachment{}, fmt.Errorf("%w: %s", ErrUnsupported, contentType)
	}

	id := ulid.Make().String()
	key := path.Join("outbound", id+extension(file.Filename, contentType))
	url, err := r.store.Put(ctx, key, contentType, bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return entity.Attachment{}, fmt.Errorf("store outbound file: %w", err)
	}
	metrics.RelayBytesTotal.Add(float64(len(file.Data)))

	filename := file.Filename
	if filename == "" {
		filename = path.Base(key)
	}
	return entity.Attachment{
		ID:          id,
		ContentType: contentType,
		URL:         url,
		Filename:    filename,
		Size:        int64(len(file.Data)),
		RelayStatus: entity.RelayDone,
	}, nil
}

func genericType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return ct == "" || strings.HasPrefix(ct, "application/octet-stream")
}

func extension(filename, contentType string) string {
	if ext := path.Ext(filename); ext != "" && len(ext) <= 6 {
		return strings.ToLower(ext)
	}
	if m := mimetype.Lookup(strings.TrimSpace(strings.Split(contentType, ";")[0])); m != nil {
		return m.Extension()
	}
	return ""
}

func failed(part entity.AttachmentDescriptor, err error) entity.Attachment {
	reason := err.Error()
	if errors.Is(err, ErrTooLarge) {
		reason = entity.FailureTooLarge
	}
	return entity.Attachment{
		ID:            part.ID,
		ContentType:   part.ContentType,
		ProviderURI:   part.URI,
		Filename:      entity.FailedFilename(part.Filename),
		RelayStatus:   entity.RelayFailed,
		FailureReason: reason,
	}
}

func pending(part entity.AttachmentDescriptor) entity.Attachment {
	return entity.Attachment{
		ID:          part.ID,
		ContentType: part.ContentType,
		ProviderURI: part.URI,
		Filename:    part.Filename,
		RelayStatus: entity.RelayPending,
	}
}

func skipped(part entity.AttachmentDescriptor) entity.Attachment {
	return entity.Attachment{
		ID:          part.ID,
		ContentType: part.ContentType,
		ProviderURI: part.URI,
		Filename:    part.Filename,
		RelayStatus: entity.RelaySkipped,
	}
}
