package proofstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// s3Store implements Store on an S3 bucket.
type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Store creates an S3-backed proof store.
func NewS3Store(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Store, error) {
	logger = logger.With().Str("component", "proof-s3-store").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 proof store initialised")

	return &s3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Put uploads the object to the bucket under prefix+key.
func (s *s3Store) Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error) {
	fullKey := s.prefix + key

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fullKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("key", fullKey).
			Msg("failed to put object to S3")
		return "", fmt.Errorf("failed to put object to S3 (bucket=%s, key=%s): %w", s.bucket, fullKey, err)
	}

	s.logger.Debug().
		Str("bucket", s.bucket).
		Str("key", fullKey).
		Msg("proof stored in S3")

	return fullKey, nil
}

// fallbackStore tries S3 first and falls back to the local file system, so a
// misconfigured bucket never loses a customer's upload.
type fallbackStore struct {
	primary  Store
	fallback Store
	logger   zerolog.Logger
}

// NewFallbackStore creates a store that tries primary first. If primary is
// nil it uses only the fallback.
func NewFallbackStore(primary, fallback Store, logger zerolog.Logger) Store {
	return &fallbackStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "proof-fallback-store").Logger(),
	}
}

// Put attempts the primary store, then the fallback.
func (s *fallbackStore) Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error) {
	if s.primary != nil {
		stored, err := s.primary.Put(ctx, key, contentType, body)
		if err == nil {
			return stored, nil
		}
		s.logger.Warn().Err(err).Str("key", key).Msg("primary proof store failed, using fallback")
		// The reader may be partially consumed; only seekable bodies can be
		// retried against the fallback.
		if seeker, ok := body.(io.Seeker); ok {
			if _, seekErr := seeker.Seek(0, io.SeekStart); seekErr != nil {
				return "", fmt.Errorf("failed to rewind proof body for fallback: %w", seekErr)
			}
		} else {
			return "", fmt.Errorf("proof upload failed and body is not retryable: %w", err)
		}
	}

	return s.fallback.Put(ctx, key, contentType, body)
}
