// Package blobstorage stores large message part bodies in S3-compatible
// object storage, keyed by content hash so identical attachments are only
// uploaded once.
package blobstorage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ErrNotFound is returned by Retrieve when no blob exists for the given ID.
var ErrNotFound = errors.New("blobstorage: blob not found")

// Config holds the S3 blob storage configuration.
type Config struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"` // custom endpoint for S3-compatible stores
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	KeyPrefix       string `yaml:"key_prefix"`
}

// S3BlobStorage stores blobs in a single S3 bucket.
type S3BlobStorage struct {
	cfg    Config
	client *s3.Client
}

// New creates an S3BlobStorage from cfg. When cfg.Enabled is false the
// returned storage is a valid no-op whose IsEnabled reports false.
func New(ctx context.Context, cfg Config) (*S3BlobStorage, error) {
	if !cfg.Enabled {
		return &S3BlobStorage{cfg: cfg}, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BlobStorage{cfg: cfg, client: client}, nil
}

// IsEnabled reports whether blobs can actually be stored.
func (s *S3BlobStorage) IsEnabled() bool {
	return s != nil && s.cfg.Enabled && s.client != nil
}

// Store uploads content and returns its content-addressed blob ID. Storing
// the same content twice is harmless and returns the same ID.
func (s *S3BlobStorage) Store(ctx context.Context, content string) (string, error) {
	if !s.IsEnabled() {
		return "", errors.New("blobstorage: storage is not enabled")
	}

	sum := sha256.Sum256([]byte(content))
	id := hex.EncodeToString(sum[:])

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(id)),
		Body:   strings.NewReader(content),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store blob %s: %w", id, err)
	}
	return id, nil
}

// Retrieve fetches the blob with the given ID. It returns ErrNotFound when
// the bucket has no such object.
func (s *S3BlobStorage) Retrieve(ctx context.Context, id string) (string, error) {
	if !s.IsEnabled() {
		return "", errors.New("blobstorage: storage is not enabled")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to retrieve blob %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read blob %s: %w", id, err)
	}
	return string(data), nil
}

func (s *S3BlobStorage) key(id string) string {
	return s.cfg.KeyPrefix + id
}
