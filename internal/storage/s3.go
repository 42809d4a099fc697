package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Store uploads attachment files to AWS S3
type S3Store struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL string
}

// NewS3Store creates a new S3-backed blob store
func NewS3Store(region, bucket, baseURL string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Store{
		client:  s3.NewFromConfig(cfg),
		bucket:  bucket,
		region:  region,
		baseURL: baseURL,
	}, nil
}

// Write uploads the bytes under an organized key and returns the public URL
func (s *S3Store) Write(ctx context.Context, data []byte, suggestedName string) (string, error) {
	fileID := uuid.New().String()
	extension := strings.ToLower(filepath.Ext(suggestedName))

	// Organized folder structure: uploads/{year}/{month}/{fileID}{ext}
	now := time.Now().UTC()
	key := fmt.Sprintf("uploads/%d/%02d/%s%s", now.Year(), now.Month(), fileID, extension)

	putObjectInput := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentTypeForName(suggestedName)),

		// Uploaded files are immutable
		CacheControl: aws.String("max-age=86400"),

		Metadata: map[string]string{
			"original-filename": suggestedName,
			"upload-timestamp":  now.Format(time.RFC3339),
		},
	}

	if _, err := s.client.PutObject(ctx, putObjectInput); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("%s/%s", strings.TrimSuffix(s.baseURL, "/"), key), nil
}

// Delete removes the stored object behind a locator returned by Write
func (s *S3Store) Delete(ctx context.Context, locator string) error {
	key := strings.TrimPrefix(locator, strings.TrimSuffix(s.baseURL, "/")+"/")
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// CheckBucketAccess verifies that we can access the S3 bucket
func (s *S3Store) CheckBucketAccess(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("cannot access S3 bucket %s: %w", s.bucket, err)
	}
	return nil
}

// ContentTypeForName returns the MIME type implied by a filename
func ContentTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".zip":
		return "application/zip"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
