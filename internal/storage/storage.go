// Package storage keeps uploaded plan images and attachments.
//
// This package defines a Storage interface with implementations for:
// - LocalStorage: File system storage for development, served under /files
// - R2Storage: Cloudflare R2 (or any S3-compatible) storage for production
//
// Stored objects must be reachable by the recipients of a submitted sheet,
// so URL returns a link that works outside this application.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the interface for blob storage operations.
//
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at key and returns the stored object's metadata.
	// Returns ErrKeyExists if the key is taken and opts.Overwrite is false,
	// and ErrTooLarge if data exceeds opts.MaxSize.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) (ObjectInfo, error)

	// Open returns the object's content (caller must close) and metadata.
	// Returns ErrNotFound if the key doesn't exist.
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a link to the object that recipients can open.
	URL(ctx context.Context, key string) (string, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type. Empty means detect from the key.
	ContentType string

	// MaxSize is the largest accepted object in bytes. Zero means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	BasePath string

	// BaseURL is the public URL prefix for stored files.
	// Example: "http://localhost:8080/files"
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the public URL of the bucket (custom domain or r2.dev).
	// If empty, presigned links valid for PresignExpiry are issued instead.
	PublicURL string

	// Endpoint overrides the R2 endpoint, for other S3-compatible stores.
	Endpoint string

	// Region defaults to "auto".
	Region string
}

// PresignExpiry is the lifetime of presigned links, the longest S3 allows.
const PresignExpiry = 7 * 24 * time.Hour

// =============================================================================
// Provider Constants
// =============================================================================

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"
)

// =============================================================================
// Key Generation Helpers
// =============================================================================

// PlanKey generates a storage key for a rendered site plan.
// Format: plans/{uuid}.png
func PlanKey() string {
	return fmt.Sprintf("plans/%s.png", uuid.New())
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AttachmentKey generates a storage key for an uploaded attachment, keeping
// a cleaned copy of the original name so downloads stay recognisable.
// Format: attachments/{uuid}/{name}
func AttachmentKey(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Trim(unsafeNameChars.ReplaceAllString(name, "-"), "-.")
	if name == "" {
		name = "file"
	}
	if len(name) > 100 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}
	return fmt.Sprintf("attachments/%s/%s", uuid.New(), name)
}

// validateKey rejects empty keys and path traversal.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
