package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
	"github.com/noah-isme/placement-attendance-api/pkg/jobs"
	"github.com/noah-isme/placement-attendance-api/pkg/photo"
	"github.com/noah-isme/placement-attendance-api/pkg/storage"
)

const thumbnailDir = "thumbs"

type photoStorage interface {
	Save(relPath string, data []byte) (string, error)
	Read(relPath string) ([]byte, error)
	Delete(relPath string) error
}

type photoSigner interface {
	Generate(relPath string) (string, time.Time, error)
	Parse(token string) (string, time.Time, error)
}

type thumbnailQueue interface {
	Submit(ctx context.Context, key string, payload string) error
}

// PhotoService owns the lifecycle of secondary verification photos.
type PhotoService struct {
	processor     *photo.Processor
	storage       photoStorage
	signer        photoSigner
	queue         thumbnailQueue
	metrics       *MetricsService
	thumbnailSize int
	linkPrefix    string
	logger        *zap.Logger
	now           func() time.Time
}

// PhotoServiceConfig configures PhotoService.
type PhotoServiceConfig struct {
	ThumbnailSize int
	// LinkPrefix is prepended to signed tokens to build download URLs.
	LinkPrefix string
}

// NewPhotoService wires photo storage and signing.
func NewPhotoService(processor *photo.Processor, store photoStorage, signer photoSigner, metrics *MetricsService, cfg PhotoServiceConfig, logger *zap.Logger) *PhotoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = 240
	}
	return &PhotoService{
		processor:     processor,
		storage:       store,
		signer:        signer,
		metrics:       metrics,
		thumbnailSize: cfg.ThumbnailSize,
		linkPrefix:    strings.TrimRight(cfg.LinkPrefix, "/"),
		logger:        logger,
		now:           time.Now,
	}
}

// UseQueue routes thumbnail generation through queue.
func (s *PhotoService) UseQueue(queue thumbnailQueue) {
	s.queue = queue
}

// Capture decodes and stores payload, then runs fn with the stored path. The
// stored file is removed whenever fn fails or ctx is cancelled, so a photo
// never outlives the transition it was captured for. An empty payload runs fn
// with a nil path.
func (s *PhotoService) Capture(ctx context.Context, payload, key string, fn func(path *string) error) (err error) {
	if strings.TrimSpace(payload) == "" {
		return fn(nil)
	}
	raw, err := s.processor.DecodePayload(payload)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid photo payload")
	}
	normalised, err := s.processor.Normalize(raw)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "photo is not a readable image")
	}

	rel := path.Join(s.now().UTC().Format("2006/01/02"), key+".jpg")
	stored, err := s.storage.Save(rel, normalised)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store photo")
	}
	defer func() {
		if err != nil {
			if delErr := s.storage.Delete(stored); delErr != nil {
				s.logger.Warn("failed to release photo", zap.String("path", stored), zap.Error(delErr))
			}
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = fn(&stored); err != nil {
		return err
	}
	s.enqueueThumbnail(ctx, stored)
	return nil
}

func (s *PhotoService) enqueueThumbnail(ctx context.Context, rel string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Submit(ctx, rel, rel); err != nil {
		s.logger.Warn("thumbnail job not queued", zap.String("path", rel), zap.Error(err))
	}
}

// ProcessThumbnail renders the thumbnail of a stored photo. It is the queue handler.
func (s *PhotoService) ProcessThumbnail(_ context.Context, task jobs.Task[string]) error {
	raw, err := s.storage.Read(task.Payload)
	if err != nil {
		s.metrics.RecordPhotoJob(false)
		return fmt.Errorf("read photo %s: %w", task.Payload, err)
	}
	thumb, err := s.processor.Thumbnail(raw, s.thumbnailSize)
	if err != nil {
		s.metrics.RecordPhotoJob(false)
		return fmt.Errorf("thumbnail %s: %w", task.Payload, err)
	}
	if _, err := s.storage.Save(ThumbnailPath(task.Payload), thumb); err != nil {
		s.metrics.RecordPhotoJob(false)
		return fmt.Errorf("save thumbnail %s: %w", task.Payload, err)
	}
	s.metrics.RecordPhotoJob(true)
	return nil
}

// ThumbnailPath maps a stored photo path to its thumbnail path.
func ThumbnailPath(rel string) string {
	return path.Join(thumbnailDir, rel)
}

// SignedURL returns a time limited download link for a stored photo, or "" when unavailable.
func (s *PhotoService) SignedURL(rel string) string {
	if s == nil || s.signer == nil || rel == "" {
		return ""
	}
	token, _, err := s.signer.Generate(rel)
	if err != nil {
		s.logger.Warn("failed to sign photo link", zap.String("path", rel), zap.Error(err))
		return ""
	}
	return s.linkPrefix + "/" + token
}

// Open resolves a signed token to photo bytes. The thumbnail is served when
// requested and already rendered, otherwise the original.
func (s *PhotoService) Open(token string, thumbnail bool) ([]byte, error) {
	rel, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "photo link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid photo link")
	}
	if thumbnail {
		if data, err := s.storage.Read(ThumbnailPath(rel)); err == nil {
			return data, nil
		}
	}
	data, err := s.storage.Read(rel)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "photo not found")
	}
	return data, nil
}
