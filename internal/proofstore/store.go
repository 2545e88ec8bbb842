// Package proofstore persists payment-proof uploads. The order core only
// keeps the object key on the payment row; the bytes live in S3 or, as a
// fallback, on the local file system.
package proofstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store writes payment-proof objects.
type Store interface {
	// Put stores the object under key and returns the key actually used.
	Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error)
}

// NewKey builds a collision-free object key for an order's proof upload,
// keeping the original file extension for content sniffing downstream.
func NewKey(orderID int64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("orders/%d/%s%s", orderID, uuid.NewString(), ext)
}

// fileStore implements Store on the local file system.
type fileStore struct {
	baseDir string
	logger  zerolog.Logger
}

// NewFileStore creates a Store rooted at baseDir.
func NewFileStore(baseDir string, logger zerolog.Logger) Store {
	return &fileStore{
		baseDir: baseDir,
		logger:  logger.With().Str("component", "proof-file-store").Logger(),
	}
}

// Put writes the object under baseDir, creating parent directories as needed.
func (s *fileStore) Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error) {
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to create proof directory")
		return "", fmt.Errorf("failed to create proof directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to create proof file")
		return "", fmt.Errorf("failed to create proof file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to write proof file")
		return "", fmt.Errorf("failed to write proof file: %w", err)
	}

	s.logger.Debug().Str("key", key).Msg("proof stored on local file system")
	return key, nil
}
