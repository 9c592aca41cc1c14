package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// S3Store implements ports.ObjectStorage against an S3 bucket.
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	logger        *logrus.Logger
}

// NewS3Store creates a new S3-backed object store. publicBaseURL, when set,
// overrides the default virtual-hosted URL (e.g. a CDN domain in front of
// the bucket).
func NewS3Store(cfg aws.Config, bucket, publicBaseURL string, logger *logrus.Logger) *S3Store {
	return &S3Store{
		client:        s3.NewFromConfig(cfg),
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// Put uploads data under key and returns the object's public URL.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object to S3: %w", err)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"bucket": s.bucket, "key": key, "bytes": len(data)}).Debug("object stored")
	}
	return s.objectURL(key), nil
}

// Delete removes the object stored under key.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func (s *S3Store) objectURL(key string) string {
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s", s.publicBaseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}
