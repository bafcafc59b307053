package public

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/postways-next/internal/http/response"
	"github.com/postways-next/internal/models"
	"github.com/postways-next/internal/provider"
	"github.com/postways-next/internal/repository"
	"github.com/postways-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupLikeHandlerTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:like_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Like{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	likeService := service.NewLikeService(
		repository.NewPostRepository(db),
		repository.NewLikeRepository(db),
		nil,
	)
	handler := New(&provider.Container{LikeService: likeService})

	r := gin.New()
	r.GET("/api/v1/likes/batch", handler.BatchLikeStats)
	r.POST("/api/v1/posts/:id/like", func(c *gin.Context) {
		c.Set("user_id", uint(7))
		handler.ToggleLike(c)
	})
	return r, db
}

func doJSONRequest(t *testing.T, r *gin.Engine, method, target string) *response.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected http status: %d", rec.Code)
	}
	var envelope response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal envelope failed: %v", err)
	}
	return &envelope
}

func seedHandlerPost(t *testing.T, db *gorm.DB) *models.Post {
	t.Helper()
	author := &models.User{Username: "author", Email: "author@example.com", PasswordHash: "x"}
	if err := db.Create(author).Error; err != nil {
		t.Fatalf("create author failed: %v", err)
	}
	post := &models.Post{Title: "hello", Content: "body", AuthorID: author.ID, Published: true}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("create post failed: %v", err)
	}
	return post
}

func TestBatchLikeStatsEmptyIDs(t *testing.T) {
	r, _ := setupLikeHandlerTest(t)

	for _, target := range []string{"/api/v1/likes/batch", "/api/v1/likes/batch?ids=", "/api/v1/likes/batch?ids=%20"} {
		envelope := doJSONRequest(t, r, http.MethodGet, target)
		if envelope.StatusCode != response.CodeOK {
			t.Fatalf("%s: expected ok envelope, got: %+v", target, envelope)
		}
		data, ok := envelope.Data.(map[string]interface{})
		if !ok || len(data) != 0 {
			t.Fatalf("%s: expected empty object, got: %v", target, envelope.Data)
		}
	}
}

func TestBatchLikeStatsRejectsBadIDs(t *testing.T) {
	r, _ := setupLikeHandlerTest(t)

	for _, target := range []string{"/api/v1/likes/batch?ids=abc", "/api/v1/likes/batch?ids=1,x", "/api/v1/likes/batch?ids=0"} {
		envelope := doJSONRequest(t, r, http.MethodGet, target)
		if envelope.StatusCode != response.CodeBadRequest {
			t.Fatalf("%s: expected bad request envelope, got: %+v", target, envelope)
		}
	}
}

func TestBatchLikeStatsDeduplicatesAndZeroFills(t *testing.T) {
	r, db := setupLikeHandlerTest(t)
	post := seedHandlerPost(t, db)
	if err := db.Create(&models.Like{UserID: 1, PostID: post.ID}).Error; err != nil {
		t.Fatalf("seed like failed: %v", err)
	}

	target := fmt.Sprintf("/api/v1/likes/batch?ids=%d,%d,999", post.ID, post.ID)
	envelope := doJSONRequest(t, r, http.MethodGet, target)
	if envelope.StatusCode != response.CodeOK {
		t.Fatalf("expected ok envelope, got: %+v", envelope)
	}
	data, ok := envelope.Data.(map[string]interface{})
	if !ok || len(data) != 2 {
		t.Fatalf("expected 2 entries after dedupe, got: %v", envelope.Data)
	}
	liked, ok := data[fmt.Sprint(post.ID)].(map[string]interface{})
	if !ok || liked["count"].(float64) != 1 {
		t.Fatalf("unexpected stats for post: %v", data[fmt.Sprint(post.ID)])
	}
	// 没人赞过的 id 也要返回零值条目
	zero, ok := data["999"].(map[string]interface{})
	if !ok || zero["count"].(float64) != 0 || zero["liked"].(bool) {
		t.Fatalf("unexpected zero-fill entry: %v", data["999"])
	}
}

func TestToggleLikeEndpoint(t *testing.T) {
	r, db := setupLikeHandlerTest(t)
	post := seedHandlerPost(t, db)

	target := fmt.Sprintf("/api/v1/posts/%d/like", post.ID)
	envelope := doJSONRequest(t, r, http.MethodPost, target)
	if envelope.StatusCode != response.CodeOK {
		t.Fatalf("expected ok envelope, got: %+v", envelope)
	}
	data, ok := envelope.Data.(map[string]interface{})
	if !ok || data["liked"].(bool) != true || data["count"].(float64) != 1 {
		t.Fatalf("unexpected toggle payload: %v", envelope.Data)
	}

	envelope = doJSONRequest(t, r, http.MethodPost, target)
	data = envelope.Data.(map[string]interface{})
	if data["liked"].(bool) != false || data["count"].(float64) != 0 {
		t.Fatalf("unexpected untoggle payload: %v", envelope.Data)
	}

	envelope = doJSONRequest(t, r, http.MethodPost, "/api/v1/posts/999/like")
	if envelope.StatusCode != response.CodeNotFound {
		t.Fatalf("expected not found envelope, got: %+v", envelope)
	}
}
