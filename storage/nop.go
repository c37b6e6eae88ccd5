package storage

import (
	"context"

	"github.com/snap-point/social-api/apperrors"
	"github.com/snap-point/social-api/logger"
	"go.uber.org/zap"
)

// NopStore stands in for R2 when no bucket is configured. Deletes are
// logged and dropped; uploads are refused.
type NopStore struct{}

func (NopStore) DeleteAsset(ctx context.Context, key string) error {
	logger.Get().Debug("Asset store disabled, skipping delete", zap.String("key", key))
	return nil
}

func (NopStore) PresignAvatarUpload(ctx context.Context, userID uint, fileName, contentType string, size int64) (*PresignedUpload, error) {
	if err := ValidateAvatar(contentType, size); err != nil {
		return nil, err
	}
	return nil, apperrors.New(apperrors.ErrorTypeStorageUnavailable, "Uploads are not configured")
}
