package controllers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/blogcms/models"
	"github.com/avolkov/blogcms/utils"
)

// postFixture holds one post per visibility variant, all by the same author.
type postFixture struct {
	env      *testEnv
	author   models.User
	stranger models.User

	authorToken   string
	strangerToken string

	visible     models.Post
	future      models.Post
	unpublished models.Post
	hiddenCat   models.Post
	noCat       models.Post
}

func newPostFixture(t *testing.T) postFixture {
	t.Helper()
	e := newTestEnv(t)
	now := time.Now()

	f := postFixture{env: e}
	f.author, f.authorToken = e.createUser("author")
	f.stranger, f.strangerToken = e.createUser("stranger")

	pubCat := e.createCategory("travel", true)
	hidCat := e.createCategory("drafts", false)

	f.visible = e.createPost(f.author, &pubCat, "visible", now.Add(-time.Hour), true)
	f.future = e.createPost(f.author, &pubCat, "future", now.Add(48*time.Hour), true)
	f.unpublished = e.createPost(f.author, &pubCat, "unpublished", now.Add(-time.Hour), false)
	f.hiddenCat = e.createPost(f.author, &hidCat, "hidden-category", now.Add(-time.Hour), true)
	f.noCat = e.createPost(f.author, nil, "no-category", now.Add(-time.Hour), true)
	return f
}

func postPath(id uint) string {
	return fmt.Sprintf("/api/v1/posts/%d", id)
}

func TestPostDetailVisibility(t *testing.T) {
	f := newPostFixture(t)

	cases := []struct {
		name   string
		post   models.Post
		token  string
		status int
	}{
		{"visible anonymous", f.visible, "", http.StatusOK},
		{"visible stranger", f.visible, f.strangerToken, http.StatusOK},
		{"future anonymous", f.future, "", http.StatusNotFound},
		{"future author", f.future, f.authorToken, http.StatusOK},
		{"unpublished stranger", f.unpublished, f.strangerToken, http.StatusNotFound},
		{"unpublished author", f.unpublished, f.authorToken, http.StatusOK},
		{"hidden category anonymous", f.hiddenCat, "", http.StatusNotFound},
		{"hidden category author", f.hiddenCat, f.authorToken, http.StatusOK},
		{"no category stranger", f.noCat, f.strangerToken, http.StatusNotFound},
		{"no category author", f.noCat, f.authorToken, http.StatusOK},
		{"absent post", models.Post{ID: 99999}, f.authorToken, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.env.request(http.MethodGet, postPath(tc.post.ID), tc.token, nil)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestHomeListingIgnoresAuthorException(t *testing.T) {
	f := newPostFixture(t)

	// even the author sees only the public slice on the home page
	w := f.env.request(http.MethodGet, "/api/v1/posts", f.authorToken, nil)
	assert.Equal(t, []string{"visible"}, listingTitles(t, w))

	w = f.env.request(http.MethodGet, "/api/v1/posts", "", nil)
	assert.Equal(t, []string{"visible"}, listingTitles(t, w))
}

func TestProfileListingAuthorException(t *testing.T) {
	f := newPostFixture(t)

	w := f.env.request(http.MethodGet, "/api/v1/users/author/posts", f.authorToken, nil)
	assert.Len(t, listingTitles(t, w), 5, "owner sees every post")

	w = f.env.request(http.MethodGet, "/api/v1/users/author/posts", f.strangerToken, nil)
	assert.Equal(t, []string{"visible"}, listingTitles(t, w))

	w = f.env.request(http.MethodGet, "/api/v1/users/author/posts", "", nil)
	assert.Equal(t, []string{"visible"}, listingTitles(t, w))

	w = f.env.request(http.MethodGet, "/api/v1/users/nobody/posts", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoryListing(t *testing.T) {
	f := newPostFixture(t)

	w := f.env.request(http.MethodGet, "/api/v1/categories/travel/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"visible"}, listingTitles(t, w))
	category := dataMap(t, w)["category"].(map[string]any)
	assert.Equal(t, "travel", category["slug"])

	// hidden and unknown slugs are indistinguishable
	w = f.env.request(http.MethodGet, "/api/v1/categories/drafts/posts", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.env.request(http.MethodGet, "/api/v1/categories/no-such/posts", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListingPaginationClamps(t *testing.T) {
	e := newTestEnv(t)
	author, _ := e.createUser("prolific")
	cat := e.createCategory("serial", true)

	base := time.Now().Add(-48 * time.Hour)
	for i := 0; i < 25; i++ {
		e.createPost(author, &cat, fmt.Sprintf("post-%02d", i), base.Add(time.Duration(i)*time.Minute), true)
	}

	w := e.request(http.MethodGet, "/api/v1/posts", "", nil)
	assert.Len(t, listingTitles(t, w), 10)
	pagination := dataMap(t, w)["pagination"].(map[string]any)
	assert.Equal(t, float64(1), pagination["page"])
	assert.Equal(t, float64(3), pagination["total_pages"])
	assert.Equal(t, float64(25), pagination["total"])

	w = e.request(http.MethodGet, "/api/v1/posts?page=3", "", nil)
	assert.Len(t, listingTitles(t, w), 5)

	// out-of-range and garbage pages clamp instead of failing
	w = e.request(http.MethodGet, "/api/v1/posts?page=100", "", nil)
	assert.Len(t, listingTitles(t, w), 5)
	assert.Equal(t, float64(3), dataMap(t, w)["pagination"].(map[string]any)["page"])

	w = e.request(http.MethodGet, "/api/v1/posts?page=abc", "", nil)
	assert.Len(t, listingTitles(t, w), 10)
	assert.Equal(t, float64(1), dataMap(t, w)["pagination"].(map[string]any)["page"])

	// newest first
	w = e.request(http.MethodGet, "/api/v1/posts", "", nil)
	assert.Equal(t, "post-24", listingTitles(t, w)[0])
}

func TestListingCarriesCommentCount(t *testing.T) {
	f := newPostFixture(t)
	for i := 0; i < 2; i++ {
		require.NoError(t, f.env.db.Create(&models.Comment{
			PostID: f.visible.ID, AuthorID: f.stranger.ID, Text: "hi",
		}).Error)
	}

	w := f.env.request(http.MethodGet, "/api/v1/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := dataMap(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, float64(2), items[0].(map[string]any)["comment_count"])
}

func TestCreatePostDefaultsPubDateToCurrentMinute(t *testing.T) {
	f := newPostFixture(t)

	w := f.env.request(http.MethodPost, "/api/v1/posts", f.authorToken, map[string]any{
		"title": "fresh",
		"text":  "body",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := uint(dataMap(t, w)["post"].(map[string]any)["id"].(float64))

	var post models.Post
	require.NoError(t, f.env.db.First(&post, id).Error)
	assert.Zero(t, post.PubDate.Second())
	assert.Zero(t, post.PubDate.Nanosecond())
	assert.WithinDuration(t, time.Now(), post.PubDate, 2*time.Minute)
	assert.True(t, post.IsPublished)
}

func TestCreatePostExplicitPubDateRoundTrips(t *testing.T) {
	f := newPostFixture(t)

	const input = "2030-04-05T10:30"
	w := f.env.request(http.MethodPost, "/api/v1/posts", f.authorToken, map[string]any{
		"title":    "deferred",
		"text":     "body",
		"pub_date": input,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := uint(dataMap(t, w)["post"].(map[string]any)["id"].(float64))

	var post models.Post
	require.NoError(t, f.env.db.First(&post, id).Error)
	expected, err := time.ParseInLocation(models.PubDateInputLayout, input, time.Local)
	require.NoError(t, err)
	assert.True(t, expected.Equal(post.PubDate), "stored %v want %v", post.PubDate, expected)

	// deferred posts stay off the public surface until the date passes
	w = f.env.request(http.MethodGet, postPath(id), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.env.request(http.MethodGet, postPath(id), f.authorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, input, dataMap(t, w)["post"].(map[string]any)["pub_date_input"])
}

func TestCreatePostRejectsUnpublishedChoices(t *testing.T) {
	f := newPostFixture(t)

	w := f.env.request(http.MethodPost, "/api/v1/posts", f.authorToken, map[string]any{
		"title":       "bad choice",
		"text":        "body",
		"category_id": *f.hiddenCat.CategoryID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePostAuthorization(t *testing.T) {
	f := newPostFixture(t)
	body := map[string]any{"title": "renamed", "text": "new body"}

	w := f.env.request(http.MethodPut, postPath(f.visible.ID), "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.env.request(http.MethodPut, postPath(f.visible.ID), f.strangerToken, body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 40301, envelope(t, w).Code)

	w = f.env.request(http.MethodPut, postPath(f.visible.ID), f.authorToken, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var post models.Post
	require.NoError(t, f.env.db.First(&post, f.visible.ID).Error)
	assert.Equal(t, "renamed", post.Title)
	assert.Equal(t, f.author.ID, post.AuthorID, "authorship never changes")

	w = f.env.request(http.MethodPut, postPath(99999), f.authorToken, body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdatePostKeepsStoredPubDateWhenOmitted(t *testing.T) {
	f := newPostFixture(t)

	w := f.env.request(http.MethodPut, postPath(f.future.ID), f.authorToken, map[string]any{
		"title": "still deferred",
		"text":  "body",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var post models.Post
	require.NoError(t, f.env.db.First(&post, f.future.ID).Error)
	assert.WithinDuration(t, f.future.PubDate, post.PubDate, time.Second)
}

func TestDeletePostCascadesToComments(t *testing.T) {
	f := newPostFixture(t)
	require.NoError(t, f.env.db.Create(&models.Comment{
		PostID: f.visible.ID, AuthorID: f.stranger.ID, Text: "doomed",
	}).Error)
	require.NoError(t, f.env.db.Create(&models.Comment{
		PostID: f.future.ID, AuthorID: f.stranger.ID, Text: "survivor",
	}).Error)

	w := f.env.request(http.MethodDelete, postPath(f.visible.ID), f.strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.env.request(http.MethodDelete, postPath(f.visible.ID), f.authorToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var postCount, commentCount int64
	f.env.db.Model(&models.Post{}).Where("id = ?", f.visible.ID).Count(&postCount)
	assert.Zero(t, postCount)
	f.env.db.Model(&models.Comment{}).Where("post_id = ?", f.visible.ID).Count(&commentCount)
	assert.Zero(t, commentCount)

	// comments under other posts are untouched
	f.env.db.Model(&models.Comment{}).Where("post_id = ?", f.future.ID).Count(&commentCount)
	assert.Equal(t, int64(1), commentCount)
}

func TestUpdatePostDropsOnlyItsDetailCache(t *testing.T) {
	f := newPostFixture(t)

	// an id that the bare numeric prefix of f.visible's id would also match
	other := models.Post{
		ID:       f.visible.ID * 10,
		AuthorID: f.author.ID, CategoryID: f.visible.CategoryID,
		Title: "neighbour", Text: "t",
		PubDate: time.Now().Add(-time.Hour), IsPublished: true,
	}
	require.NoError(t, f.env.db.Create(&other).Error)

	visibleKey := fmt.Sprintf("cache:post:detail:%d:anon", f.visible.ID)
	otherKey := fmt.Sprintf("cache:post:detail:%d:anon", other.ID)

	w := f.env.request(http.MethodGet, postPath(f.visible.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.env.request(http.MethodGet, postPath(other.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := utils.CachedPage(visibleKey)
	require.True(t, ok)
	_, ok = utils.CachedPage(otherKey)
	require.True(t, ok)

	w = f.env.request(http.MethodPut, postPath(f.visible.ID), f.authorToken, map[string]any{
		"title": "renamed", "text": "t",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, ok = utils.CachedPage(visibleKey)
	assert.False(t, ok, "edited post's detail entry is dropped")
	_, ok = utils.CachedPage(otherKey)
	assert.True(t, ok, "other posts keep their detail entries")
}

func TestEditorChoicesFiltersAndSorts(t *testing.T) {
	f := newPostFixture(t)
	require.NoError(t, f.env.db.Create(&models.Location{Name: "Zurich", IsPublished: true}).Error)
	require.NoError(t, f.env.db.Create(&models.Location{Name: "Atlantis", IsPublished: false}).Error)
	require.NoError(t, f.env.db.Create(&models.Location{Name: "Bergen", IsPublished: true}).Error)

	w := f.env.request(http.MethodGet, "/api/v1/editor/choices", f.authorToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, w)

	categories := data["categories"].([]any)
	require.Len(t, categories, 1)
	assert.Equal(t, "travel", categories[0].(map[string]any)["slug"])

	locations := data["locations"].([]any)
	require.Len(t, locations, 2)
	assert.Equal(t, "Bergen", locations[0].(map[string]any)["name"])
	assert.Equal(t, "Zurich", locations[1].(map[string]any)["name"])

	w = f.env.request(http.MethodGet, "/api/v1/editor/choices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePostSanitizesMarkup(t *testing.T) {
	f := newPostFixture(t)

	w := f.env.request(http.MethodPost, "/api/v1/posts", f.authorToken, map[string]any{
		"title": "clean",
		"text":  `hello <script>alert(1)</script><b>world</b>`,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := uint(dataMap(t, w)["post"].(map[string]any)["id"].(float64))

	var post models.Post
	require.NoError(t, f.env.db.First(&post, id).Error)
	assert.NotContains(t, post.Text, "<script>")
	assert.Contains(t, post.Text, "<b>world</b>")
}
