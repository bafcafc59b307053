package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/postways-next/internal/constants"
	"github.com/postways-next/internal/models"
	"github.com/postways-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type captureBroadcaster struct {
	events []LikeEvent
	err    error
}

func (b *captureBroadcaster) PublishLike(_ context.Context, event LikeEvent) error {
	b.events = append(b.events, event)
	return b.err
}

func setupLikeServiceTest(t *testing.T) (*LikeService, *captureBroadcaster, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:like_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Like{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	broadcaster := &captureBroadcaster{}
	svc := NewLikeService(repository.NewPostRepository(db), repository.NewLikeRepository(db), broadcaster)
	return svc, broadcaster, db
}

func seedLikeServicePost(t *testing.T, db *gorm.DB, published bool) *models.Post {
	t.Helper()
	author := &models.User{Username: "author", Email: "author@example.com", PasswordHash: "x"}
	if err := db.Create(author).Error; err != nil {
		t.Fatalf("create author failed: %v", err)
	}
	post := &models.Post{Title: "hello", Content: "body", AuthorID: author.ID, Published: published}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("create post failed: %v", err)
	}
	return post
}

func TestLikeServiceToggleBroadcasts(t *testing.T) {
	svc, broadcaster, db := setupLikeServiceTest(t)
	post := seedLikeServicePost(t, db, true)

	outcome, err := svc.Toggle(7, post.ID)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !outcome.Created || outcome.Count != 1 {
		t.Fatalf("expected liked with count 1, got: %+v", outcome)
	}

	outcome, err = svc.Toggle(7, post.ID)
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if outcome.Created || outcome.Count != 0 {
		t.Fatalf("expected unliked with count 0, got: %+v", outcome)
	}

	if len(broadcaster.events) != 2 {
		t.Fatalf("expected 2 broadcast events, got: %d", len(broadcaster.events))
	}
	first, second := broadcaster.events[0], broadcaster.events[1]
	if first.Action != constants.LikeResultCreated || first.Count != 1 || first.PostID != post.ID || first.ActorID != 7 {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if second.Action != constants.LikeResultRemoved || second.Count != 0 || second.ActorID != 7 {
		t.Fatalf("unexpected second event: %+v", second)
	}
}

func TestLikeServiceToggleUnknownPost(t *testing.T) {
	svc, broadcaster, _ := setupLikeServiceTest(t)

	if _, err := svc.Toggle(7, 999); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got: %v", err)
	}
	if len(broadcaster.events) != 0 {
		t.Fatalf("no event expected, got: %d", len(broadcaster.events))
	}
}

func TestLikeServiceToggleUnpublished(t *testing.T) {
	svc, _, db := setupLikeServiceTest(t)
	post := seedLikeServicePost(t, db, false)

	// 作者本人同样不能给未发布文章点赞
	if _, err := svc.Toggle(post.AuthorID, post.ID); !errors.Is(err, ErrPostUnpublished) {
		t.Fatalf("expected ErrPostUnpublished for author, got: %v", err)
	}
	if _, err := svc.Toggle(42, post.ID); !errors.Is(err, ErrPostUnpublished) {
		t.Fatalf("expected ErrPostUnpublished, got: %v", err)
	}
}

func TestLikeServiceBroadcastFailureDoesNotUndoToggle(t *testing.T) {
	svc, broadcaster, db := setupLikeServiceTest(t)
	post := seedLikeServicePost(t, db, true)
	broadcaster.err = errors.New("redis down")

	outcome, err := svc.Toggle(7, post.ID)
	if err != nil {
		t.Fatalf("toggle should succeed despite broadcast failure, got: %v", err)
	}
	if !outcome.Created || outcome.Count != 1 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	var rows int64
	if err := db.Model(&models.Like{}).Count(&rows).Error; err != nil {
		t.Fatalf("count likes failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("like row should be committed, got: %d", rows)
	}
}

func TestLikeServiceTwoUsersSeeSharedCount(t *testing.T) {
	svc, _, db := setupLikeServiceTest(t)
	post := seedLikeServicePost(t, db, true)

	if _, err := svc.Toggle(1, post.ID); err != nil {
		t.Fatalf("toggle by user 1 failed: %v", err)
	}
	outcome, err := svc.Toggle(2, post.ID)
	if err != nil {
		t.Fatalf("toggle by user 2 failed: %v", err)
	}
	if !outcome.Created || outcome.Count != 2 {
		t.Fatalf("expected count 2, got: %+v", outcome)
	}

	stats, err := svc.BatchStats(1, []uint{post.ID})
	if err != nil {
		t.Fatalf("batch stats failed: %v", err)
	}
	if stats[post.ID].Count != 2 || !stats[post.ID].Liked {
		t.Fatalf("unexpected stats: %+v", stats[post.ID])
	}
}
