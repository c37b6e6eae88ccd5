package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/snap-point/social-api/apperrors"
	"github.com/snap-point/social-api/logger"
	"github.com/snap-point/social-api/models"
	"github.com/snap-point/social-api/repository"
	"github.com/snap-point/social-api/storage"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var userTypes = map[string]bool{"personal": true, "business": true}

// ProfileService covers the owner-only profile operations.
type ProfileService struct {
	store      repository.Store
	assets     AssetStore
	visibility *VisibilityService
}

// UpdateProfileInput holds the fields to change. Empty fields are left
// alone. Avatar and AvatarKey come from a completed presigned upload.
type UpdateProfileInput struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Bio       string `json:"bio"`
	UserType  string `json:"userType"`
	Avatar    string `json:"avatar"`
	AvatarKey string `json:"avatarKey"`
}

type MeView struct {
	User          *models.User          `json:"user"`
	Posts         []models.Post         `json:"posts"`
	Notifications []models.Notification `json:"notifications"`
}

func (s *ProfileService) owner(ctx context.Context, actorID uint, username, deniedMessage string) (*models.User, error) {
	user, err := findByUsername(ctx, s.store, username)
	if err != nil {
		return nil, appError(err)
	}
	if user.ID != actorID {
		return nil, apperrors.New(apperrors.ErrorTypeUnauthorized, deniedMessage)
	}
	return user, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, actorID uint, username string, input UpdateProfileInput) (*models.User, error) {
	user, err := s.owner(ctx, actorID, username, "User can only update their own profile")
	if err != nil {
		return nil, err
	}

	if input.Username != "" {
		if input.Username == user.Username {
			return nil, apperrors.NewValidation("Please use a different username")
		}
		if err := validateUsername(input.Username); err != nil {
			return nil, err
		}
		if taken, err := s.taken(ctx, s.store.FindUserByUsername, input.Username); err != nil || taken {
			return nil, orValidation(err, "Username is already in use")
		}
		user.Username = input.Username
	}
	if input.Email != "" {
		if input.Email == user.Email {
			return nil, apperrors.NewValidation("Please use a different email")
		}
		if taken, err := s.taken(ctx, s.store.FindUserByEmail, input.Email); err != nil || taken {
			return nil, orValidation(err, "Email is already in use")
		}
		user.Email = input.Email
	}
	if err := validateBio(input.Bio); err != nil {
		return nil, err
	}
	if input.UserType != "" {
		if !userTypes[input.UserType] {
			return nil, apperrors.NewValidation("userType must be personal or business")
		}
		user.UserType = input.UserType
	}
	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Bio != "" {
		user.Bio = input.Bio
	}

	previousKey := ""
	if input.AvatarKey != "" && input.AvatarKey != user.AvatarKey {
		if !strings.HasPrefix(input.AvatarKey, fmt.Sprintf("users/%d/avatar/", user.ID)) {
			return nil, apperrors.NewValidation("Invalid avatar key")
		}
		previousKey = user.AvatarKey
		user.AvatarKey = input.AvatarKey
		user.Avatar = input.Avatar
	}

	if err := s.store.SaveUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewValidation("Username or email is already in use")
		}
		return nil, appError(err)
	}

	if previousKey != "" {
		if err := s.assets.DeleteAsset(ctx, previousKey); err != nil {
			logger.Get().Warn("Failed to delete previous avatar", zap.String("key", previousKey), zap.Error(err))
		}
	}
	return user, nil
}

func (s *ProfileService) taken(ctx context.Context, find func(context.Context, string) (*models.User, error), value string) (bool, error) {
	_, err := find(ctx, value)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func orValidation(err error, message string) error {
	if err != nil {
		return appError(err)
	}
	return apperrors.NewValidation(message)
}

// ChangePassword replaces the owner's password after checking the old one.
func (s *ProfileService) ChangePassword(ctx context.Context, actorID uint, username, oldPassword, newPassword, confirmPassword string) error {
	user, err := s.owner(ctx, actorID, username, "Unauthorized Access")
	if err != nil {
		return err
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return apperrors.NewValidation("Old Password is not correct")
	}
	if newPassword != confirmPassword {
		return apperrors.NewValidation("Password must be same")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeStorageUnavailable, "Could not hash password", err)
	}
	user.Password = string(hashed)
	return appError(s.store.SaveUser(ctx, user))
}

func (s *ProfileService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := findByID(ctx, s.store, id)
	if err != nil {
		return nil, appError(err)
	}
	return user, nil
}

// Me returns the caller's own user with their posts and notifications.
func (s *ProfileService) Me(ctx context.Context, actorID uint) (*MeView, error) {
	user, err := findByID(ctx, s.store, actorID)
	if err != nil {
		return nil, appError(err)
	}
	if err := s.store.LoadRelations(ctx, user); err != nil {
		return nil, appError(err)
	}
	posts, err := s.store.PostsByOwner(ctx, user.ID)
	if err != nil {
		return nil, appError(err)
	}
	notifications, err := s.store.FindNotifications(ctx, user.ID, feedLimit)
	if err != nil {
		return nil, appError(err)
	}
	return &MeView{User: user, Posts: posts, Notifications: notifications}, nil
}

// PresignAvatar hands the owner an upload URL for a new avatar.
func (s *ProfileService) PresignAvatar(ctx context.Context, actorID uint, fileName, contentType string, size int64) (*storage.PresignedUpload, error) {
	upload, err := s.assets.PresignAvatarUpload(ctx, actorID, fileName, contentType, size)
	if err != nil {
		return nil, appError(err)
	}
	return upload, nil
}
