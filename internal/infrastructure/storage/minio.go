package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/conversationhub/transcription-engine/pkg/config"
)

// ChunkArchive stores raw audio chunks in object storage so verified
// transcript entries can be traced back to the audio they came from. The
// archive is best-effort: a failed upload never fails the transcription
// call.
type ChunkArchive struct {
	client        *minio.Client
	bucket        string
	retentionDays int
}

// NewChunkArchive creates the archive client and ensures the bucket exists.
func NewChunkArchive(cfg config.StorageConfig) (*ChunkArchive, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	archive := &ChunkArchive{
		client:        minioClient,
		bucket:        cfg.BucketName,
		retentionDays: cfg.RetentionDays,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}

	return archive, nil
}

func (a *ChunkArchive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// chunkObjectName builds the archive key for one chunk of a session.
func chunkObjectName(sessionID string, chunkNumber int) string {
	return fmt.Sprintf("live/%s/chunk_%03d.webm", sessionID, chunkNumber)
}

// ArchiveChunk uploads one raw audio chunk. Returns the object name.
func (a *ChunkArchive) ArchiveChunk(ctx context.Context, sessionID string, chunkNumber int, audio []byte) (string, error) {
	objectName := chunkObjectName(sessionID, chunkNumber)

	_, err := a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(audio), int64(len(audio)), minio.PutObjectOptions{
		ContentType: "audio/webm",
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive chunk: %w", err)
	}
	return objectName, nil
}

// ChunkURL returns a presigned download URL for an archived chunk object.
func (a *ChunkArchive) ChunkURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	url, err := a.client.PresignedGetObject(ctx, a.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

// ListSessionChunks lists the archived chunk objects for a session.
func (a *ChunkArchive) ListSessionChunks(ctx context.Context, sessionID string) ([]string, error) {
	var objects []string

	objectCh := a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    fmt.Sprintf("live/%s/", sessionID),
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}
		objects = append(objects, object.Key)
	}
	return objects, nil
}

// PruneExpired removes archived chunks older than the configured retention.
// Intended to run from a periodic sweep; retention 0 disables pruning.
func (a *ChunkArchive) PruneExpired(ctx context.Context) (int, error) {
	if a.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -a.retentionDays)

	removed := 0
	objectCh := a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    "live/",
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return removed, fmt.Errorf("error listing objects: %w", object.Err)
		}
		if object.LastModified.After(cutoff) {
			continue
		}
		if err := a.client.RemoveObject(ctx, a.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", object.Key, err)
		}
		removed++
	}
	return removed, nil
}
