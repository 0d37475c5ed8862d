package models

import "time"

// PubDateInputLayout is the minute-precision layout used to pre-populate the
// post editor and accepted on submission.
const PubDateInputLayout = "2006-01-02T15:04"

// Post is a blog publication. AuthorID is set on create and never changes.
// PubDate may lie in the future to defer publication.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthorID    uint      `gorm:"index;not null" json:"author_id"`
	CategoryID  *uint     `gorm:"index" json:"category_id"`
	LocationID  *uint     `gorm:"index" json:"location_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	ImageURL    string    `gorm:"size:512" json:"image_url,omitempty"`
	PubDate     time.Time `gorm:"index;not null" json:"pub_date"`
	IsPublished bool      `gorm:"not null" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Author      User      `gorm:"foreignKey:AuthorID" json:"author"`
	Category    *Category `json:"category,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Comments    []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`

	// CommentCount is attached at query time by WithCommentCount; never stored.
	CommentCount int64 `gorm:"-:migration;->" json:"comment_count"`
	// PubDateInput carries the minute-precision editor representation of
	// PubDate. Filled by handlers, never persisted.
	PubDateInput string `gorm:"-" json:"pub_date_input,omitempty"`
}
