package repository

import (
	"TextDesk/internal/storage"
	"context"
	"errors"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"io"
	"net/url"
	"strings"
)

const filesPrefix = "/files/"

type fileMetadata struct {
	ContentType string `bson:"content_type"`
}

func (m *MongoDB) bucket() (*gridfs.Bucket, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	bucket, err := gridfs.NewBucket(connection.Database(m.database))
	if err != nil {
		return nil, fmt.Errorf("gridfs bucket: %w", err)
	}
	return bucket, nil
}

// Put stores body under key, replacing any earlier file with that name, and
// returns the public URL served by the files handler.
func (m *MongoDB) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	bucket, err := m.bucket()
	if err != nil {
		return "", err
	}

	cursor, err := bucket.FindContext(ctx, bson.D{{"filename", key}})
	if err != nil {
		return "", fmt.Errorf("gridfs find: %w", err)
	}
	var existing []struct {
		ID interface{} `bson:"_id"`
	}
	if err = cursor.All(ctx, &existing); err != nil {
		return "", fmt.Errorf("gridfs find: %w", err)
	}
	for _, file := range existing {
		if err = bucket.DeleteContext(ctx, file.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return "", fmt.Errorf("gridfs delete: %w", err)
		}
	}

	uploadOpts := options.GridFSUpload().SetMetadata(fileMetadata{ContentType: contentType})
	stream, err := bucket.OpenUploadStream(key, uploadOpts)
	if err != nil {
		return "", fmt.Errorf("gridfs open upload: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}
	written, err := io.Copy(stream, body)
	if err != nil {
		_ = stream.Abort()
		return "", fmt.Errorf("gridfs copy: %w", err)
	}
	if err = stream.Close(); err != nil {
		return "", fmt.Errorf("gridfs close upload: %w", err)
	}
	if size > 0 && written != size {
		m.log.Warn("gridfs size mismatch",
			"key", key,
			"expected", size,
			"written", written,
		)
	}
	return m.fileURL(key), nil
}

func (m *MongoDB) fileURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(m.publicURL, "/") + filesPrefix + strings.Join(segments, "/")
}

// OpenFile opens the newest file stored under key and returns it with its
// content type and length. The caller must close the reader.
func (m *MongoDB) OpenFile(ctx context.Context, key string) (io.ReadCloser, string, int64, error) {
	bucket, err := m.bucket()
	if err != nil {
		return nil, "", 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = bucket.SetReadDeadline(deadline)
	}
	stream, err := bucket.OpenDownloadStreamByName(key)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, "", 0, storage.ErrNotFound
	}
	if err != nil {
		return nil, "", 0, fmt.Errorf("gridfs open download: %w", err)
	}
	file := stream.GetFile()

	var meta fileMetadata
	if len(file.Metadata) > 0 {
		if err = bson.Unmarshal(file.Metadata, &meta); err != nil {
			m.log.Error("failed to unmarshal gridfs metadata", "error", err.Error())
		}
	}
	return stream, meta.ContentType, file.Length, nil
}
