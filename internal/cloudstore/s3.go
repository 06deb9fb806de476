package cloudstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Store is the output storage surface consumed by the orchestrator. Enabled
// gates whether completed jobs keep inline bytes or a storage reference.
type Store interface {
	Enabled() bool
	Upload(ctx context.Context, data []byte, key, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

// Config holds S3 settings
type Config struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	Endpoint     string
	UsePathStyle bool
}

// S3Store stores job output in an S3 bucket
type S3Store struct {
	bucket     string
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
}

func NewS3Store(cfg *Config) *S3Store {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		),
	}

	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}

	if cfg.UsePathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess := session.Must(session.NewSession(awsCfg))

	return &S3Store{
		bucket:     cfg.Bucket,
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
	}
}

func (s *S3Store) Enabled() bool {
	return true
}

func (s *S3Store) Upload(ctx context.Context, data []byte, key, contentType string) (string, error) {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})

	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return key, nil
}

func (s *S3Store) Download(ctx context.Context, key string) ([]byte, error) {
	buf := aws.NewWriteAtBuffer(nil)

	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}

	return buf.Bytes(), nil
}

// DisabledStore is used when cloud storage is turned off; completed jobs keep
// their output inline.
type DisabledStore struct{}

func (DisabledStore) Enabled() bool {
	return false
}

func (DisabledStore) Upload(context.Context, []byte, string, string) (string, error) {
	return "", fmt.Errorf("cloud storage is disabled")
}

func (DisabledStore) Download(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("cloud storage is disabled")
}
