package recordings

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rx3lixir/voicebank/pkg/audio"
)

type MinIOStore struct {
	client     *minio.Client
	bucketName string
}

func NewMinIOStore(client *minio.Client, bucketName string) *MinIOStore {
	return &MinIOStore{
		client:     client,
		bucketName: bucketName,
	}
}

// objectName creates the S3 key for a recording stored at t
func objectName(id uuid.UUID, audioFormat string, t time.Time) string {
	return fmt.Sprintf(
		"recordings/%d/%02d/%02d/%s.%s",
		t.Year(),
		t.Month(),
		t.Day(),
		id.String(),
		audioFormat,
	)
}

// UploadRecording uploads audio bytes to MinIO
func (m *MinIOStore) UploadRecording(
	ctx context.Context,
	id uuid.UUID,
	reader io.Reader,
	size int64,
	audioFormat string,
) (string, error) {
	now := time.Now().UTC()
	name := objectName(id, audioFormat, now)

	_, err := m.client.PutObject(
		ctx,
		m.bucketName,
		name,
		reader,
		size,
		minio.PutObjectOptions{
			ContentType: audio.ContentType(audioFormat),
			UserMetadata: map[string]string{
				"recording-id": id.String(),
				"uploaded":     now.Format(time.RFC3339),
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload to minio: %w", err)
	}

	return name, nil
}

// DeleteRecording deletes a recording object from MinIO
func (m *MinIOStore) DeleteRecording(ctx context.Context, objectName string) error {
	err := m.client.RemoveObject(ctx, m.bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GetPresignedURL returns a time-limited playback URL
func (m *MinIOStore) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucketName, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned url: %w", err)
	}
	return url.String(), nil
}
