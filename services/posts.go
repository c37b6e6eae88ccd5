package services

import (
	"context"
	"errors"
	"strings"

	"github.com/snap-point/social-api/apperrors"
	"github.com/snap-point/social-api/models"
	"github.com/snap-point/social-api/repository"
)

const maxMediaPerPost = 10

type PostService struct {
	store      repository.Store
	visibility *VisibilityService
}

type CreatePostInput struct {
	Content   string   `json:"content"`
	MediaKeys []string `json:"mediaKeys"`
}

func (s *PostService) Create(ctx context.Context, actorID uint, input CreatePostInput) (*models.Post, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" && len(input.MediaKeys) == 0 {
		return nil, apperrors.NewValidation("Post needs content or media")
	}
	if len(input.MediaKeys) > maxMediaPerPost {
		return nil, apperrors.NewValidation("Maximum 10 files allowed per post")
	}

	post := &models.Post{
		Content:   content,
		MediaKeys: input.MediaKeys,
		OwnerID:   actorID,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, appError(err)
	}
	return post, nil
}

// Get hides posts of users blocked with the viewer as if they did not
// exist.
func (s *PostService) Get(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	post, err := s.visible(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) Comment(ctx context.Context, actorID, postID uint, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidation("Comment can not be empty")
	}
	post, err := s.visible(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{Content: content, OwnerID: actorID, PostID: post.ID}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, appError(err)
	}
	return comment, nil
}

func (s *PostService) visible(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	notFound := apperrors.NewNotFound("Post not found")

	post, err := s.store.FindPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound
		}
		return nil, appError(err)
	}
	canView, err := s.visibility.CanView(ctx, viewerID, post.OwnerID)
	if err != nil {
		return nil, err
	}
	if !canView {
		return nil, notFound
	}
	return post, nil
}
