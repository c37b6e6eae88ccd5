package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/social-api/services"
)

type PostController struct {
	posts *services.PostService
}

func NewPostController(posts *services.PostService) *PostController {
	return &PostController{posts: posts}
}

func (pc *PostController) CreatePost(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var input services.CreatePostInput
	if !bindJSON(c, &input) {
		return
	}

	post, err := pc.posts.Create(c.Request.Context(), user.UserID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Post created", post)
}

func (pc *PostController) GetPost(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := paramID(c, "id", "Invalid post id")
	if !ok {
		return
	}

	post, err := pc.posts.Get(c.Request.Context(), user.UserID, postID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", post)
}

func (pc *PostController) AddComment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := paramID(c, "id", "Invalid post id")
	if !ok {
		return
	}
	var input struct {
		Content string `json:"content" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}

	comment, err := pc.posts.Comment(c.Request.Context(), user.UserID, postID, input.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Comment added", comment)
}
