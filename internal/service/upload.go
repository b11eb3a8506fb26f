package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/DukeRupert/soilsheet/internal/metrics"
	"github.com/DukeRupert/soilsheet/internal/storage"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultMaxAttachmentSize is the per-file attachment limit (25 MB).
	DefaultMaxAttachmentSize int64 = 25 << 20

	// MaxPlanDataURLSize bounds the encoded plan image accepted from the
	// drawing widget (20 MB of base64).
	MaxPlanDataURLSize = 20 << 20

	uploadKindPlan       = "plan"
	uploadKindAttachment = "attachment"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UploadService stores plan images and attachments.
type UploadService interface {
	// UploadPlan stores a rendered plan given as a base64 data URL and
	// returns its public URL and storage key.
	// Returns domain.EINVALID for a missing or undecodable image.
	UploadPlan(ctx context.Context, dataURL string) (url, key string, err error)

	// UploadAttachments stores each file and returns descriptors for the
	// ones that succeeded. Files fail independently; the returned error
	// joins every failure.
	UploadAttachments(ctx context.Context, files []*multipart.FileHeader) ([]domain.Attachment, error)

	// Delete removes a stored object. Used when an attachment or plan is replaced.
	Delete(ctx context.Context, key string) error
}

// UploadConfig tunes an UploadService.
type UploadConfig struct {
	MaxAttachmentSize int64
	PlanMaxDimension  int
}

// =============================================================================
// Implementation
// =============================================================================

type uploadService struct {
	storage   storage.Storage
	processor PlanProcessor
	cfg       UploadConfig
	logger    *slog.Logger
}

// NewUploadService creates an UploadService.
func NewUploadService(store storage.Storage, processor PlanProcessor, cfg UploadConfig, logger *slog.Logger) UploadService {
	if cfg.MaxAttachmentSize <= 0 {
		cfg.MaxAttachmentSize = DefaultMaxAttachmentSize
	}
	if cfg.PlanMaxDimension <= 0 {
		cfg.PlanMaxDimension = DefaultPlanMaxDimension
	}
	if processor == nil {
		processor = NewImagingProcessor()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &uploadService{
		storage:   store,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *uploadService) UploadPlan(ctx context.Context, dataURL string) (string, string, error) {
	const op = "upload.plan"

	contentType, raw, err := decodeDataURL(dataURL)
	if err != nil {
		metrics.UploadFailed(uploadKindPlan)
		return "", "", domain.Wrap(err, domain.EINVALID, op, "Invalid image data")
	}
	if !storage.IsPlanImageType(contentType) {
		metrics.UploadFailed(uploadKindPlan)
		return "", "", domain.Invalid(op, "Plan must be a PNG, JPEG or GIF image")
	}

	png, width, height, err := s.processor.Normalize(bytes.NewReader(raw), s.cfg.PlanMaxDimension)
	if err != nil {
		metrics.UploadFailed(uploadKindPlan)
		return "", "", domain.Wrap(err, domain.EINVALID, op, "Invalid image data")
	}

	key := storage.PlanKey()
	info, err := s.storage.Put(ctx, key, bytes.NewReader(png), storage.PutOptions{ContentType: "image/png"})
	if err != nil {
		metrics.UploadFailed(uploadKindPlan)
		s.logger.Error("failed to store plan", "key", key, "error", err)
		return "", "", domain.Internal(err, op, "Failed to upload image")
	}

	url, err := s.storage.URL(ctx, key)
	if err != nil {
		metrics.UploadFailed(uploadKindPlan)
		s.cleanup(key)
		s.logger.Error("failed to build plan URL", "key", key, "error", err)
		return "", "", domain.Internal(err, op, "Failed to upload image")
	}

	metrics.UploadCompleted(uploadKindPlan, info.Size)
	s.logger.Info("plan uploaded",
		"key", key,
		"width", width,
		"height", height,
		"size", info.Size,
	)
	return url, key, nil
}

func (s *uploadService) UploadAttachments(ctx context.Context, files []*multipart.FileHeader) ([]domain.Attachment, error) {
	const op = "upload.attachments"

	if len(files) == 0 {
		return nil, domain.Invalid(op, "No files were provided")
	}

	var (
		out  []domain.Attachment
		errs []error
	)
	for _, fh := range files {
		a, err := s.uploadAttachment(ctx, fh)
		if err != nil {
			metrics.UploadFailed(uploadKindAttachment)
			errs = append(errs, err)
			continue
		}
		metrics.UploadCompleted(uploadKindAttachment, a.Size)
		out = append(out, a)
	}
	return out, errors.Join(errs...)
}

func (s *uploadService) uploadAttachment(ctx context.Context, fh *multipart.FileHeader) (domain.Attachment, error) {
	const op = "upload.attachment"

	name := strings.TrimSpace(fh.Filename)
	if name == "" {
		name = "attachment"
	}
	if fh.Size > s.cfg.MaxAttachmentSize {
		return domain.Attachment{}, domain.TooLarge(op, fmt.Sprintf("%s is larger than %d MB", name, s.cfg.MaxAttachmentSize>>20))
	}

	file, err := fh.Open()
	if err != nil {
		return domain.Attachment{}, domain.Internal(err, op, "Failed to read "+name)
	}
	defer file.Close()

	key := storage.AttachmentKey(name)
	info, err := s.storage.Put(ctx, key, file, storage.PutOptions{
		ContentType: fh.Header.Get("Content-Type"),
		MaxSize:     s.cfg.MaxAttachmentSize,
	})
	if err != nil {
		if storage.IsTooLarge(err) {
			return domain.Attachment{}, domain.TooLarge(op, fmt.Sprintf("%s is larger than %d MB", name, s.cfg.MaxAttachmentSize>>20))
		}
		s.logger.Error("failed to store attachment", "name", name, "error", err)
		return domain.Attachment{}, domain.Internal(err, op, "Failed to upload "+name)
	}

	url, err := s.storage.URL(ctx, key)
	if err != nil {
		s.cleanup(key)
		return domain.Attachment{}, domain.Internal(err, op, "Failed to upload "+name)
	}

	s.logger.Info("attachment uploaded", "key", key, "size", info.Size)
	return domain.Attachment{
		Name: name,
		Type: info.ContentType,
		Size: info.Size,
		URL:  url,
		Key:  key,
	}, nil
}

func (s *uploadService) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		return domain.Internal(err, "upload.delete", "Failed to delete file")
	}
	return nil
}

// cleanup removes an orphaned object, logging rather than returning failures.
func (s *uploadService) cleanup(key string) {
	if err := s.storage.Delete(context.Background(), key); err != nil {
		s.logger.Warn("failed to remove orphaned upload", "key", key, "error", err)
	}
}

// =============================================================================
// Data URLs
// =============================================================================

// decodeDataURL parses a base64 "data:<type>;base64,<payload>" URL.
func decodeDataURL(dataURL string) (string, []byte, error) {
	if dataURL == "" {
		return "", nil, errors.New("no image data")
	}
	if len(dataURL) > MaxPlanDataURLSize {
		return "", nil, errors.New("image data too large")
	}

	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("malformed data URL")
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errors.New("data URL is not base64 encoded")
	}
	if contentType == "" {
		contentType = "text/plain"
	}

	raw, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, strings.NewReader(payload)))
	if err != nil {
		return "", nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(raw) == 0 {
		return "", nil, errors.New("no image data")
	}
	return strings.ToLower(contentType), raw, nil
}
