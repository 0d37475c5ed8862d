package controllers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avolkov/blogcms/models"
	"github.com/avolkov/blogcms/routes"
	"github.com/avolkov/blogcms/utils"
)

var testRedis *miniredis.Miniredis

func TestMain(m *testing.M) {
	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer mr.Close()
	testRedis = mr

	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("GIN_MODE", "test")
	os.Setenv("RATE_LIMIT_PER_MINUTE", "100000")
	os.Setenv("REDIS_HOST", mr.Host())
	os.Setenv("REDIS_PORT", mr.Port())

	os.Exit(m.Run())
}

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

// newTestEnv builds a router over a fresh in-memory database. The cache is
// flushed because record IDs repeat between databases while cache keys do not
// carry any database identity.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	testRedis.FlushAll()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps every session on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Category{}, &models.Location{},
		&models.Post{}, &models.Comment{},
	))

	return &testEnv{t: t, db: db, router: routes.SetupRouter(db)}
}

func (e *testEnv) request(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createUser(username string) (models.User, string) {
	e.t.Helper()
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "not-a-real-hash",
	}
	require.NoError(e.t, e.db.Create(&user).Error)

	token, err := utils.IssueToken(user.ID, user.Username, time.Hour)
	require.NoError(e.t, err)
	return user, token
}

func (e *testEnv) createCategory(slug string, published bool) models.Category {
	e.t.Helper()
	category := models.Category{Title: slug, Slug: slug, IsPublished: published}
	require.NoError(e.t, e.db.Create(&category).Error)
	return category
}

func (e *testEnv) createPost(author models.User, category *models.Category, title string, pubDate time.Time, published bool) models.Post {
	e.t.Helper()
	post := models.Post{
		AuthorID:    author.ID,
		Title:       title,
		Text:        "body of " + title,
		PubDate:     pubDate,
		IsPublished: published,
	}
	if category != nil {
		post.CategoryID = &category.ID
	}
	require.NoError(e.t, e.db.Create(&post).Error)
	return post
}

// envelope decodes the uniform response body.
func envelope(t *testing.T, w *httptest.ResponseRecorder) utils.JSONResponse {
	t.Helper()
	var resp utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// dataMap returns the envelope's data object for field-level assertions.
func dataMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	resp := envelope(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is not an object: %s", w.Body.String())
	return data
}

func listingTitles(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	items, ok := dataMap(t, w)["items"].([]any)
	require.True(t, ok)

	titles := make([]string, 0, len(items))
	for _, item := range items {
		post := item.(map[string]any)
		titles = append(titles, post["title"].(string))
	}
	return titles
}
