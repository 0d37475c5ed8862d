package seed

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"

	"github.com/avolkov/blogcms/models"
	"github.com/avolkov/blogcms/utils"
)

// Run populates the database with demo users, categories, locations, posts
// and comments. Some posts are unpublished or future-dated so the visibility
// rules are observable out of the box.
func Run(db *gorm.DB) error {
	gofakeit.Seed(0)

	categories := make([]models.Category, 0, 5)
	for i := 0; i < 5; i++ {
		categories = append(categories, models.Category{
			Title:       gofakeit.BookTitle(),
			Slug:        fmt.Sprintf("%s-%d", gofakeit.Adjective(), i),
			Description: gofakeit.Sentence(12),
			IsPublished: i != 4, // keep one category hidden
		})
	}
	if err := db.Create(&categories).Error; err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}

	locations := make([]models.Location, 0, 5)
	for i := 0; i < 5; i++ {
		locations = append(locations, models.Location{
			Name:        gofakeit.City(),
			IsPublished: i != 4,
		})
	}
	if err := db.Create(&locations).Error; err != nil {
		return fmt.Errorf("seed locations: %w", err)
	}

	users := make([]models.User, 0, 4)
	for i := 0; i < 4; i++ {
		hash, err := utils.HashPassword("password123")
		if err != nil {
			return err
		}
		users = append(users, models.User{
			Username:     gofakeit.Username(),
			Email:        gofakeit.Email(),
			FirstName:    gofakeit.FirstName(),
			LastName:     gofakeit.LastName(),
			PasswordHash: hash,
		})
	}
	if err := db.Create(&users).Error; err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	now := time.Now().Truncate(time.Minute)
	posts := make([]models.Post, 0, 40)
	for i := 0; i < 40; i++ {
		author := users[i%len(users)]
		category := categories[i%len(categories)]
		location := locations[i%len(locations)]

		pubDate := now.Add(-time.Duration(i) * 6 * time.Hour)
		if i%10 == 9 {
			// deferred publication
			pubDate = now.Add(time.Duration(i) * time.Hour)
		}

		posts = append(posts, models.Post{
			AuthorID:    author.ID,
			CategoryID:  &category.ID,
			LocationID:  &location.ID,
			Title:       gofakeit.Sentence(5),
			Text:        gofakeit.Paragraph(3, 4, 10, "\n\n"),
			PubDate:     pubDate,
			IsPublished: i%7 != 6,
		})
	}
	if err := db.Create(&posts).Error; err != nil {
		return fmt.Errorf("seed posts: %w", err)
	}

	comments := make([]models.Comment, 0, 80)
	for i := 0; i < 80; i++ {
		comments = append(comments, models.Comment{
			PostID:   posts[i%len(posts)].ID,
			AuthorID: users[(i+1)%len(users)].ID,
			Text:     gofakeit.Sentence(10),
		})
	}
	if err := db.Create(&comments).Error; err != nil {
		return fmt.Errorf("seed comments: %w", err)
	}

	return nil
}
