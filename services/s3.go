package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures S3AssetStore. Endpoint and UsePathStyle target
// S3-compatible servers such as MinIO.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	// PublicBaseURL overrides the URL prefix returned for uploads.
	PublicBaseURL string
}

// S3AssetStore keeps course videos, thumbnails and flashcard images in a bucket.
type S3AssetStore struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewS3AssetStore(ctx context.Context, cfg S3Config) (*S3AssetStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		switch {
		case cfg.Endpoint != "" && cfg.UsePathStyle:
			baseURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		case cfg.Endpoint != "":
			baseURL = strings.TrimRight(cfg.Endpoint, "/")
		default:
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return &S3AssetStore{client: client, bucket: cfg.Bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *S3AssetStore) Upload(ctx context.Context, body io.Reader, kind AssetKind, filename, contentType string) (*StoredAsset, error) {
	key, err := objectKey(kind, filename)
	if err != nil {
		return nil, err
	}

	reader, size, err := readAll(body)
	if err != nil {
		return nil, err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentTypeFor(filename, contentType)),
		Metadata: map[string]string{
			"kind": string(kind),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to s3: %w", err)
	}

	return &StoredAsset{
		URL:    s.baseURL + "/" + key,
		ID:     key,
		Format: extension(filename),
		Bytes:  size,
	}, nil
}

func (s *S3AssetStore) Delete(ctx context.Context, id string, kind AssetKind) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	return nil
}

// HealthCheck verifies bucket connectivity.
func (s *S3AssetStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}
