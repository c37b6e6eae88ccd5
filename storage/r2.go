package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/snap-point/social-api/apperrors"
	"github.com/snap-point/social-api/config"
)

const (
	avatarMaxSize    = 5 * 1024 * 1024
	avatarURLExpires = 30 * time.Minute
)

var avatarContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// PresignedUpload tells the client where to PUT the file and which key to
// send back once it is uploaded.
type PresignedUpload struct {
	UploadURL string `json:"uploadUrl"`
	FileURL   string `json:"fileUrl"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expiresIn"`
}

// R2Store manages user assets in a Cloudflare R2 bucket through its S3
// compatible API.
type R2Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

func NewR2Store(cfg config.R2Config) *R2Store {
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)),
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		Region: cfg.Region,
	})

	return &R2Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.BucketName,
		publicURL: cfg.PublicURL,
	}
}

func (s *R2Store) DeleteAsset(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete asset %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key has been uploaded.
func (s *R2Store) Exists(ctx context.Context, key string) bool {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err == nil
}

func (s *R2Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", s.publicURL, key)
}

func (s *R2Store) PresignAvatarUpload(ctx context.Context, userID uint, fileName, contentType string, size int64) (*PresignedUpload, error) {
	if err := ValidateAvatar(contentType, size); err != nil {
		return nil, err
	}

	key := AvatarKey(userID, fileName)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = avatarURLExpires
	})
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(fmt.Errorf("presign avatar: %w", err))
	}

	return &PresignedUpload{
		UploadURL: req.URL,
		FileURL:   s.PublicURL(key),
		Key:       key,
		ExpiresIn: int(avatarURLExpires.Seconds()),
	}, nil
}

// ValidateAvatar accepts jpeg, png and webp images up to 5MB.
func ValidateAvatar(contentType string, size int64) error {
	if !avatarContentTypes[contentType] {
		return apperrors.NewValidation("Invalid avatar file type")
	}
	if size <= 0 || size > avatarMaxSize {
		return apperrors.NewValidation("Avatar file size exceeds limit")
	}
	return nil
}

// AvatarKey places avatars under users/{id}/avatar/ with a unique name.
func AvatarKey(userID uint, fileName string) string {
	return fmt.Sprintf("users/%d/avatar/%d_%s%s", userID, time.Now().Unix(), uuid.New().String(), filepath.Ext(fileName))
}
