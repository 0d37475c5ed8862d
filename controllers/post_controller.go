package controllers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avolkov/blogcms/middleware"
	"github.com/avolkov/blogcms/models"
	"github.com/avolkov/blogcms/utils"
)

// PostController manages post listings, the detail view and post CRUD.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

type postRequest struct {
	Title      string `json:"title" binding:"required,min=1"`
	Text       string `json:"text" binding:"required"`
	PubDate    string `json:"pub_date"`
	CategoryID *uint  `json:"category_id"`
	LocationID *uint  `json:"location_id"`
	ImageURL   string `json:"image_url"`
}

// ListPosts returns the paginated home listing. Only publicly visible posts
// appear here, even when the viewer authored hidden ones.
func (p *PostController) ListPosts(ctx *gin.Context) {
	pageParam := ctx.Query("page")
	cacheKey := "cache:posts:home:page=" + pageParam
	if b, ok := utils.CachedPage(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	now := time.Now()
	base := p.db.Model(&models.Post{}).Scopes(models.PublishedPosts(now))

	payload, ok := p.listPage(ctx, base, pageParam)
	if !ok {
		return
	}
	cacheWrapped(cacheKey, payload)
	utils.Success(ctx, payload)
}

// ListCategoryPosts returns the paginated listing for one category. Unknown
// or unpublished slugs are indistinguishable: both are a 404.
func (p *PostController) ListCategoryPosts(ctx *gin.Context) {
	slug := strings.TrimSpace(ctx.Param("slug"))

	var category models.Category
	if err := p.db.Where("slug = ? AND is_published = ?", slug, true).First(&category).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40405, "category not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load category")
		return
	}

	pageParam := ctx.Query("page")
	cacheKey := fmt.Sprintf("cache:posts:cat=%s:page=%s", slug, pageParam)
	if b, ok := utils.CachedPage(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	now := time.Now()
	base := p.db.Model(&models.Post{}).Scopes(models.PostsInCategory(category.ID, now))

	payload, ok := p.listPage(ctx, base, pageParam)
	if !ok {
		return
	}
	payload["category"] = category
	cacheWrapped(cacheKey, payload)
	utils.Success(ctx, payload)
}

// ListUserPosts returns the paginated profile listing for a username. The
// profile owner sees all of their posts, including deferred and unpublished
// ones; everyone else gets the public filter.
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	uname := strings.TrimSpace(ctx.Param("username"))

	var profile models.User
	if err := p.db.Where("username = ?", uname).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40411, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load user")
		return
	}

	base := p.db.Model(&models.Post{}).Where("posts.author_id = ?", profile.ID)
	if middleware.ViewerID(ctx) != profile.ID {
		base = base.Scopes(models.PublishedPosts(time.Now()))
	}

	payload, ok := p.listPage(ctx, base, ctx.Query("page"))
	if !ok {
		return
	}
	payload["profile"] = profile
	utils.Success(ctx, payload)
}

// listPage executes the shared count/clamp/fetch sequence for a listing query
// and returns the response payload.
func (p *PostController) listPage(ctx *gin.Context, base *gorm.DB, pageParam string) (gin.H, bool) {
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to count posts")
		return nil, false
	}

	page := utils.ResolvePage(pageParam, total)

	var posts []models.Post
	err := base.Session(&gorm.Session{}).
		Scopes(models.WithCommentCount, models.RecentFirst).
		Preload("Author").Preload("Category").Preload("Location").
		Offset(page.Offset()).Limit(page.Size).
		Find(&posts).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to list posts")
		return nil, false
	}

	return gin.H{"items": posts, "pagination": page}, true
}

// GetPost returns a single post with its comments. Visibility failures are
// indistinguishable from absence: both answer 404.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID := ctx.Param("id")
	viewerID := middleware.ViewerID(ctx)

	cacheKey := "cache:post:detail:" + postID + ":anon"
	if viewerID == 0 {
		if b, ok := utils.CachedPage(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	var post models.Post
	err := p.db.Scopes(models.PostsVisibleTo(viewerID, time.Now()), models.WithCommentCount).
		Preload("Author").Preload("Category").Preload("Location").
		First(&post, "posts.id = ?", postID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load post")
		return
	}

	var comments []models.Comment
	if err := p.db.Preload("Author").
		Where("post_id = ?", post.ID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to load comments")
		return
	}
	post.Comments = comments
	post.PubDateInput = post.PubDate.Local().Format(models.PubDateInputLayout)

	payload := gin.H{"post": post}
	if viewerID == 0 {
		cacheWrapped(cacheKey, payload)
	}
	utils.Success(ctx, payload)
}

// EditorChoices returns the category and location options offered by the post
// editor: published only, categories by title and locations by name. This is
// choice filtering, not validation. An existing post keeps an unpublished
// category or location it already has.
func (p *PostController) EditorChoices(ctx *gin.Context) {
	var categories []models.Category
	if err := p.db.Where("is_published = ?", true).Order("title ASC").Find(&categories).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load categories")
		return
	}
	var locations []models.Location
	if err := p.db.Where("is_published = ?", true).Order("name ASC").Find(&locations).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to load locations")
		return
	}
	utils.Success(ctx, gin.H{"categories": categories, "locations": locations})
}

// CreatePost creates a post authored by the requester. A missing pub_date
// defaults to now truncated to the minute; a future one defers publication.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	userID := middleware.ViewerID(ctx)
	if userID == 0 {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return
	}

	pubDate, err := resolvePubDate(req.PubDate, time.Time{})
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid pub_date")
		return
	}

	if code, msg := p.checkChoice(req.CategoryID, req.LocationID, nil); code != 0 {
		utils.Error(ctx, http.StatusBadRequest, code, msg)
		return
	}

	post := models.Post{
		AuthorID:    userID,
		CategoryID:  req.CategoryID,
		LocationID:  req.LocationID,
		Title:       title,
		Text:        utils.Sanitize(req.Text),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		PubDate:     pubDate,
		IsPublished: true,
	}

	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to create post")
		return
	}

	utils.DropCachedPages("cache:posts:")

	utils.Success(ctx, gin.H{"post": post})
}

// UpdatePost lets the author modify their post. Anyone else gets a 403 once
// the post is known to exist.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load post")
		return
	}

	if !requireAuthor(ctx, post.AuthorID) {
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40025, "title cannot be empty")
		return
	}

	pubDate, err := resolvePubDate(req.PubDate, post.PubDate)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid pub_date")
		return
	}

	if code, msg := p.checkChoice(req.CategoryID, req.LocationID, &post); code != 0 {
		utils.Error(ctx, http.StatusBadRequest, code, msg)
		return
	}

	post.Title = title
	post.Text = utils.Sanitize(req.Text)
	post.ImageURL = strings.TrimSpace(req.ImageURL)
	post.PubDate = pubDate
	post.CategoryID = req.CategoryID
	post.LocationID = req.LocationID

	if err := p.db.Save(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update post")
		return
	}

	utils.DropCachedPages("cache:posts:", "cache:post:detail:"+postID+":")

	post.PubDateInput = post.PubDate.Local().Format(models.PubDateInputLayout)
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost removes a post and its comments in one transaction. Only the
// author may delete.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40404, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to load post")
		return
	}

	if !requireAuthor(ctx, post.AuthorID) {
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to delete post")
		return
	}

	utils.DropCachedPages("cache:posts:", "cache:post:detail:"+postID+":")

	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// UploadImage stores an uploaded post image and returns its public URL.
func (p *PostController) UploadImage(ctx *gin.Context) {
	if middleware.ViewerID(ctx) == 0 {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "no file uploaded")
		return
	}
	defer file.Close()

	const maxSize = 5 * 1024 * 1024
	if header.Size > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40041, "file size exceeds 5MB")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		utils.Error(ctx, http.StatusBadRequest, 40042, "unsupported image type")
		return
	}

	now := time.Now()
	baseDir := filepath.Join(".", "static", "uploads", now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to create upload directory")
		return
	}

	name := uuid.NewString() + ext
	dstPath := filepath.Join(baseDir, name)
	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to save file")
		return
	}
	defer out.Close()

	lr := &io.LimitedReader{R: file, N: maxSize + 1}
	written, err := io.Copy(out, lr)
	if err != nil || written > maxSize {
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusBadRequest, 40041, "file size exceeds 5MB")
		return
	}

	url := fmt.Sprintf("/static/uploads/%s/%s/%s/%s",
		now.Format("2006"), now.Format("01"), now.Format("02"), name)
	utils.Success(ctx, gin.H{"url": url})
}

// checkChoice validates submitted category/location references against the
// editor's published-only choices. A reference the post already carries is
// retained even when unpublished.
func (p *PostController) checkChoice(categoryID, locationID *uint, current *models.Post) (int, string) {
	if categoryID != nil && !(current != nil && current.CategoryID != nil && *current.CategoryID == *categoryID) {
		var category models.Category
		if err := p.db.Where("id = ? AND is_published = ?", *categoryID, true).First(&category).Error; err != nil {
			return 40026, "invalid category choice"
		}
	}
	if locationID != nil && !(current != nil && current.LocationID != nil && *current.LocationID == *locationID) {
		var location models.Location
		if err := p.db.Where("id = ? AND is_published = ?", *locationID, true).First(&location).Error; err != nil {
			return 40027, "invalid location choice"
		}
	}
	return 0, ""
}

// resolvePubDate parses a submitted publication date, truncating to minute
// precision. Empty input falls back to the stored value, or to now for a new
// post.
func resolvePubDate(raw string, stored time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if stored.IsZero() {
			return time.Now().Truncate(time.Minute), nil
		}
		return stored, nil
	}
	if t, err := time.ParseInLocation(models.PubDateInputLayout, raw, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.Truncate(time.Minute), nil
}

// requireAuthor enforces the single ownership predicate shared by every
// mutating action: the request must be authenticated and the viewer must be
// the resource's author. It writes the response itself and returns false when
// the action must not proceed. Existence is the caller's concern and is
// always checked first.
func requireAuthor(ctx *gin.Context, authorID uint) bool {
	viewerID := middleware.ViewerID(ctx)
	if viewerID == 0 {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return false
	}
	if viewerID != authorID {
		utils.Error(ctx, http.StatusForbidden, 40301, "only the author may modify this resource")
		return false
	}
	return true
}

// cacheWrapped stores payload in the cache wrapped in the standard response
// envelope so hits can be served byte-for-byte.
func cacheWrapped(key string, payload gin.H) {
	utils.CachePage(key, utils.JSONResponse{Code: 0, Message: "success", Data: payload})
}
