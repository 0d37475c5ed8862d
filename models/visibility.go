package models

import (
	"time"

	"gorm.io/gorm"
)

// publishedCond is the public-visibility predicate for posts: the post is
// published, its publication date has passed, and its category exists and is
// published. A post without a category never matches (the category clause
// requires a published category row).
const publishedCond = "posts.is_published = ? AND posts.pub_date <= ? " +
	"AND posts.category_id IN (SELECT id FROM categories WHERE is_published = ?)"

// PublishedPosts keeps only posts visible to the general public at the given
// instant. Home and category listings apply it unconditionally, even when the
// viewer authored the post.
func PublishedPosts(now time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(publishedCond, true, now, true)
	}
}

// PostsVisibleTo applies the full visibility rule for the detail view: the
// public predicate, plus the author exception when viewerID is non-zero.
// viewerID zero means anonymous.
func PostsVisibleTo(viewerID uint, now time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if viewerID == 0 {
			return db.Where(publishedCond, true, now, true)
		}
		return db.Where("posts.author_id = ? OR ("+publishedCond+")",
			viewerID, true, now, true)
	}
}

// PostsInCategory scopes posts to an already-resolved category. The category
// published check happened when the slug was resolved, so only the post's own
// flag and date are re-checked here.
func PostsInCategory(categoryID uint, now time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.category_id = ? AND posts.is_published = ? AND posts.pub_date <= ?",
			categoryID, true, now)
	}
}

// WithCommentCount annotates each post with the number of comments referencing
// it at query time.
func WithCommentCount(db *gorm.DB) *gorm.DB {
	return db.Select("posts.*, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count")
}

// RecentFirst orders listings newest first with a stable id tie-break so that
// pagination stays deterministic when posts share a pub_date.
func RecentFirst(db *gorm.DB) *gorm.DB {
	return db.Order("posts.pub_date DESC, posts.id DESC")
}
