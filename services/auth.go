package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/snap-point/social-api/apperrors"
	"github.com/snap-point/social-api/config"
	"github.com/snap-point/social-api/logger"
	"github.com/snap-point/social-api/models"
	"github.com/snap-point/social-api/repository"
	"github.com/snap-point/social-api/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues tokens for local and Google accounts.
type AuthService struct {
	store  repository.Store
	tokens *utils.TokenIssuer
	google *config.GoogleConfig
}

type RegisterInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name"`
}

type AuthResult struct {
	TokenType    string       `json:"token_type"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

var errInvalidCredentials = apperrors.New(apperrors.ErrorTypeUnauthorized, "Invalid credentials")

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := validateUsername(input.Username); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeStorageUnavailable, "Could not hash password", err)
	}

	user := &models.User{
		Username: input.Username,
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Name:     input.Name,
		Password: string(hashed),
		UserType: "personal",
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewValidation("Username or email already exists")
		}
		return nil, appError(err)
	}

	logger.Get().Info("User registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return s.issue(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, appError(err)
	}
	if user.Password == "" {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return s.issue(ctx, user)
}

// Refresh rotates a refresh token: the presented one is consumed and a new
// pair is issued. Whoever deletes the stored token first wins, so a token
// replayed concurrently is honoured once.
func (s *AuthService) Refresh(ctx context.Context, token string) (*AuthResult, error) {
	invalid := apperrors.New(apperrors.ErrorTypeUnauthorized, "Invalid refresh token")

	stored, err := s.store.FindRefreshToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid
		}
		return nil, appError(err)
	}
	deleted, err := s.store.DeleteRefreshToken(ctx, token)
	if err != nil {
		return nil, appError(err)
	}
	if deleted == 0 {
		return nil, invalid
	}
	if stored.Expired(time.Now()) {
		return nil, apperrors.New(apperrors.ErrorTypeUnauthorized, "Refresh token expired")
	}

	user, err := s.store.FindUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid
		}
		return nil, appError(err)
	}
	return s.issue(ctx, user)
}

// Logout revokes a refresh token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	_, err := s.store.DeleteRefreshToken(ctx, token)
	return appError(err)
}

// GoogleEnabled reports whether sign-in with Google is configured.
func (s *AuthService) GoogleEnabled() bool {
	return s.google != nil
}

// GoogleLogin signs in with an OAuth authorization code, linking to an
// existing account with the same email or creating a new one.
func (s *AuthService) GoogleLogin(ctx context.Context, code string) (*AuthResult, error) {
	if s.google == nil {
		return nil, apperrors.NewValidation("Google sign-in is not configured")
	}
	info, err := s.google.UserInfo(ctx, code)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeUnauthorized, "Invalid Google token", err)
	}

	user, err := s.store.FindUserByGoogleID(ctx, info.ID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.linkOrCreateGoogleUser(ctx, info)
		if err != nil {
			return nil, appError(err)
		}
	default:
		return nil, appError(err)
	}
	return s.issue(ctx, user)
}

func (s *AuthService) linkOrCreateGoogleUser(ctx context.Context, info *config.GoogleUserInfo) (*models.User, error) {
	email := strings.ToLower(info.Email)
	user, err := s.store.FindUserByEmail(ctx, email)
	if err == nil {
		user.GoogleID = &info.ID
		if user.Avatar == "" {
			user.Avatar = info.Picture
		}
		return user, s.store.SaveUser(ctx, user)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	base := usernameFromEmail(email)
	username := base
	for counter := 1; ; counter++ {
		_, err := s.store.FindUserByUsername(ctx, username)
		if errors.Is(err, repository.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		username = base + strconv.Itoa(counter)
	}

	user = &models.User{
		Username: username,
		Email:    email,
		Name:     info.Name,
		Avatar:   info.Picture,
		GoogleID: &info.ID,
		UserType: "personal",
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	logger.Get().Info("User registered with Google", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// usernameFromEmail derives a valid username from an email's local part.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" || !(name[0] >= 'a' && name[0] <= 'z' || name[0] >= 'A' && name[0] <= 'Z') {
		name = "u" + name
	}
	if len(name) < 3 {
		name += "_user"
	}
	if len(name) > 15 {
		name = name[:15]
	}
	if reservedUsernames[strings.ToLower(name)] {
		name += "_1"
	}
	return name
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	access, err := s.tokens.AccessToken(utils.UserClaims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeStorageUnavailable, "Could not generate token", err)
	}
	refresh, expires, err := s.tokens.RefreshToken(user.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeStorageUnavailable, "Could not generate token", err)
	}
	if err := s.store.CreateRefreshToken(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: expires,
	}); err != nil {
		return nil, appError(err)
	}

	return &AuthResult{
		TokenType:    "Bearer",
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	}, nil
}
