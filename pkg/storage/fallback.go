package storage

import (
	"context"
	"io"

	"github.com/atelierhq/atelier-backend/pkg/logger"
)

// FallbackStore tries the primary store first and falls back to the
// secondary when the primary upload fails. The caller's request never fails
// because the bucket is unreachable; the object just lands on disk.
type FallbackStore struct {
	primary   Store
	secondary Store
	logg      *logger.Logger
}

func NewFallbackStore(primary, secondary Store, logg *logger.Logger) *FallbackStore {
	return &FallbackStore{primary: primary, secondary: secondary, logg: logg}
}

func (s *FallbackStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (*UploadResult, error) {
	if s.primary != nil {
		result, err := s.primary.Upload(ctx, key, contentType, body)
		if err == nil {
			return result, nil
		}
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()})
			s.logg.Warn(logCtx, "primary storage upload failed, using local fallback")
		}
		if seeker, ok := body.(io.Seeker); ok {
			if _, seekErr := seeker.Seek(0, io.SeekStart); seekErr != nil {
				return nil, seekErr
			}
		}
	}
	return s.secondary.Upload(ctx, key, contentType, body)
}

func (s *FallbackStore) Delete(ctx context.Context, key string) error {
	var primaryErr error
	if s.primary != nil {
		primaryErr = s.primary.Delete(ctx, key)
	}
	if err := s.secondary.Delete(ctx, key); err != nil {
		return err
	}
	return primaryErr
}
