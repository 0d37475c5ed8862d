package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/avolkov/blogcms/middleware"
	"github.com/avolkov/blogcms/models"
	"github.com/avolkov/blogcms/utils"
)

// CommentController manages comments under posts.
type CommentController struct {
	db *gorm.DB
}

// NewCommentController creates a new CommentController instance.
func NewCommentController(db *gorm.DB) *CommentController {
	return &CommentController{db: db}
}

// AddComment attaches a comment to a post and redirects to the post's detail
// view. An invalid or blank submission redirects the same way without
// persisting anything and no error is surfaced.
func (c *CommentController) AddComment(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := c.db.First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to load post")
		return
	}

	detailURL := "/api/v1/posts/" + postID

	var req struct {
		Text string `json:"text"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.SeeOther(ctx, detailURL)
		return
	}
	text := utils.Sanitize(strings.TrimSpace(req.Text))
	if text == "" {
		utils.SeeOther(ctx, detailURL)
		return
	}

	userID := middleware.ViewerID(ctx)
	if userID == 0 {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	comment := models.Comment{
		PostID:   post.ID,
		AuthorID: userID,
		Text:     text,
	}
	if err := c.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to create comment")
		return
	}

	utils.DropCachedPages("cache:post:detail:"+postID+":", "cache:posts:")

	utils.SeeOther(ctx, detailURL)
}

// UpdateComment lets the comment's author change its text.
func (c *CommentController) UpdateComment(ctx *gin.Context) {
	comment, ok := c.loadComment(ctx)
	if !ok {
		return
	}
	if !requireAuthor(ctx, comment.AuthorID) {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40052, "invalid request payload")
		return
	}
	text := utils.Sanitize(strings.TrimSpace(req.Text))
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40053, "text cannot be empty")
		return
	}

	comment.Text = text
	if err := c.db.Save(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to update comment")
		return
	}

	utils.DropCachedPages("cache:post:detail:" + ctx.Param("id") + ":")

	utils.Success(ctx, gin.H{"comment": comment})
}

// DeleteComment removes a comment. Deleting a comment never touches its
// parent post.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	comment, ok := c.loadComment(ctx)
	if !ok {
		return
	}
	if !requireAuthor(ctx, comment.AuthorID) {
		return
	}

	if err := c.db.Delete(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to delete comment")
		return
	}

	// listings embed comment_count, so they go stale together with the detail
	utils.DropCachedPages("cache:post:detail:"+ctx.Param("id")+":", "cache:posts:")

	utils.Success(ctx, gin.H{"message": "comment deleted"})
}

// loadComment resolves :id/:commentId into a comment belonging to that post.
// Existence resolves before any ownership check.
func (c *CommentController) loadComment(ctx *gin.Context) (models.Comment, bool) {
	postID := ctx.Param("id")
	commentID := strings.TrimSpace(ctx.Param("commentId"))

	var comment models.Comment
	err := c.db.Where("post_id = ?", postID).First(&comment, commentID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40420, "comment not found")
			return comment, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50054, "failed to load comment")
		return comment, false
	}
	return comment, true
}
