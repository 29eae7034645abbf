package storage

import (
	"TextDesk/internal/lib/sl"
	"context"
	"fmt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
	"io"
	"log/slog"
)

const gcsPublicURL = "https://storage.googleapis.com"

// GCS writes objects through the Cloud Storage JSON API.
type GCS struct {
	bucket  string
	service *gcs.Service
	log     *slog.Logger
}

func NewGCS(ctx context.Context, bucket, credentialsFile string, log *slog.Logger) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	service, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs service: %w", err)
	}
	return &GCS{
		bucket:  bucket,
		service: service,
		log:     log.With(sl.Module("storage.gcs")),
	}, nil
}

func (g *GCS) Put(ctx context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	object := &gcs.Object{
		Name:        key,
		ContentType: contentType,
	}
	_, err := g.service.Objects.Insert(g.bucket, object).
		Media(body, googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		g.log.With(slog.String("key", key), sl.Err(err)).Error("insert object")
		return "", fmt.Errorf("gcs insert %s: %w", key, err)
	}
	return joinURL(gcsPublicURL+"/"+g.bucket, key), nil
}
