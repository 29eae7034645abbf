package entity

import (
	"fmt"
	"strings"
)

// MaxMmsSize is the provider's hard cap for one multimedia message (1.5 MB).
const MaxMmsSize = 1536 << 10

// RelayStatus tracks an attachment through the download-and-reupload pipeline.
type RelayStatus string

const (
	RelayPending RelayStatus = "pending" // known to the provider, not attempted yet
	RelayDone    RelayStatus = "relayed"
	RelayFailed  RelayStatus = "failed"
	RelaySkipped RelayStatus = "skipped" // not a binary media class
)

// FailureTooLarge marks failures caused by provider size caps; jobs never retry them.
const FailureTooLarge = "too_large"

const failedSuffix = " (failed to save)"

// Attachment is a media part of a Message.
// ProviderURI is short-lived and authenticated; URL is the durable copy.
type Attachment struct {
	ID            string      `json:"id" bson:"id"`
	ContentType   string      `json:"content_type" bson:"content_type"`
	ProviderURI   string      `json:"provider_uri,omitempty" bson:"provider_uri"`
	URL           string      `json:"url" bson:"url"`
	Filename      string      `json:"filename" bson:"filename"`
	Size          int64       `json:"size,omitempty" bson:"size"`
	RelayStatus   RelayStatus `json:"relay_status" bson:"relay_status"`
	FailureReason string      `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
}

// Relayed reports whether a durable URL is already recorded.
func (a Attachment) Relayed() bool {
	return a.URL != ""
}

// Retryable reports whether a maintenance job may attempt the relay again.
func (a Attachment) Retryable(includeFailed bool) bool {
	switch a.RelayStatus {
	case RelayPending, "":
		return a.URL == "" && a.ProviderURI != ""
	case RelayFailed:
		return includeFailed && a.FailureReason != FailureTooLarge && a.ProviderURI != ""
	default:
		return false
	}
}

// Descriptor rebuilds the provider descriptor the attachment came from.
func (a Attachment) Descriptor() AttachmentDescriptor {
	return AttachmentDescriptor{
		ID:          a.ID,
		URI:         a.ProviderURI,
		ContentType: a.ContentType,
		Filename:    strings.TrimSuffix(a.Filename, failedSuffix),
	}
}

// FailedFilename annotates a filename so the UI can show that saving failed.
func FailedFilename(name string) string {
	if name == "" {
		name = "attachment"
	}
	if strings.HasSuffix(name, failedSuffix) {
		return name
	}
	return name + failedSuffix
}

// AttachmentDescriptor is a provider-side reference to a message part.
type AttachmentDescriptor struct {
	ID          string `json:"id"`
	URI         string `json:"uri"`
	Type        string `json:"type"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

// PartID is the descriptor id, or a positional id when the provider sent none.
func (d AttachmentDescriptor) PartID(index int) string {
	if d.ID != "" {
		return d.ID
	}
	return fmt.Sprintf("part-%d", index)
}

// MediaClass is the top-level MIME type of a message part.
type MediaClass string

const (
	MediaImage MediaClass = "image"
	MediaAudio MediaClass = "audio"
	MediaVideo MediaClass = "video"
	MediaText  MediaClass = "text"
	MediaOther MediaClass = "other"
)

// Class classifies the descriptor. Provider parts typed "Text" are text
// regardless of the declared content type.
func (d AttachmentDescriptor) Class() MediaClass {
	if strings.EqualFold(d.Type, "Text") {
		return MediaText
	}
	return ClassOf(d.ContentType)
}

// ClassOf returns the media class of a content type such as "image/jpeg; q=1".
func ClassOf(contentType string) MediaClass {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, '/'); i >= 0 {
		ct = ct[:i]
	}
	switch MediaClass(ct) {
	case MediaImage, MediaAudio, MediaVideo, MediaText:
		return MediaClass(ct)
	}
	return MediaOther
}

// IsBinaryMedia reports whether the class is relayed to durable storage.
func (c MediaClass) IsBinaryMedia() bool {
	return c == MediaImage || c == MediaAudio || c == MediaVideo
}

// OutboundFile is a file submitted by a manager for an outbound MMS.
type OutboundFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
