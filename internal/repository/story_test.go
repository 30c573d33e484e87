package repository

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/snapgram/snapgram/internal/db"
	"github.com/snapgram/snapgram/internal/model"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Init("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	err = db.RunMigrations(database.DB, "sqlite")
	if err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return database
}

func seedUser(t *testing.T, database *sqlx.DB, id string) {
	t.Helper()

	now := time.Now().UTC()
	_, err := database.Exec(
		`INSERT INTO users (id, email, username, name, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, '', $5, $6)`,
		id, id+"@example.com", id, id, now, now)
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func seedStory(t *testing.T, repo StoryRepository, id, userID string, createdAt time.Time, ttl time.Duration) *model.Story {
	t.Helper()

	story := &model.Story{
		ID:        id,
		UserID:    userID,
		MediaURL:  "https://cdn.example.com/" + id + ".jpg",
		MediaID:   "blob-" + id,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(ttl),
	}
	err := repo.Create(story)
	if err != nil {
		t.Fatalf("seed story %s: %v", id, err)
	}
	return story
}

func TestStoryRecentFiltersExpired(t *testing.T) {
	database := testDB(t)
	repo := NewStoryRepository(database)
	seedUser(t, database, "alice")

	now := time.Now().UTC()
	seedStory(t, repo, "fresh", "alice", now.Add(-1*time.Hour), 24*time.Hour)
	seedStory(t, repo, "stale", "alice", now.Add(-30*time.Hour), 24*time.Hour)

	stories, err := repo.Recent(now)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}

	if len(stories) != 1 {
		t.Fatalf("got %d stories, want 1", len(stories))
	}
	if stories[0].ID != "fresh" {
		t.Errorf("got story %q, want %q", stories[0].ID, "fresh")
	}
}

func TestStoryRecentNewestFirst(t *testing.T) {
	database := testDB(t)
	repo := NewStoryRepository(database)
	seedUser(t, database, "alice")
	seedUser(t, database, "bob")

	now := time.Now().UTC()
	seedStory(t, repo, "older", "alice", now.Add(-3*time.Hour), 24*time.Hour)
	seedStory(t, repo, "newest", "bob", now.Add(-1*time.Hour), 24*time.Hour)
	seedStory(t, repo, "middle", "alice", now.Add(-2*time.Hour), 24*time.Hour)

	stories, err := repo.Recent(now)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}

	want := []string{"newest", "middle", "older"}
	if len(stories) != len(want) {
		t.Fatalf("got %d stories, want %d", len(stories), len(want))
	}
	for i, id := range want {
		if stories[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, stories[i].ID, id)
		}
	}
}

func TestStoryByUserIncludesExpired(t *testing.T) {
	database := testDB(t)
	repo := NewStoryRepository(database)
	seedUser(t, database, "alice")
	seedUser(t, database, "bob")

	now := time.Now().UTC()
	seedStory(t, repo, "active", "alice", now.Add(-1*time.Hour), 24*time.Hour)
	seedStory(t, repo, "expired", "alice", now.Add(-48*time.Hour), 24*time.Hour)
	seedStory(t, repo, "other", "bob", now.Add(-1*time.Hour), 24*time.Hour)

	stories, err := repo.ByUser("alice")
	if err != nil {
		t.Fatalf("by user: %v", err)
	}

	if len(stories) != 2 {
		t.Fatalf("got %d stories, want 2", len(stories))
	}
	if stories[0].ID != "active" || stories[1].ID != "expired" {
		t.Errorf("got order [%s %s], want [active expired]", stories[0].ID, stories[1].ID)
	}
}

func TestStoryAddViewIdempotent(t *testing.T) {
	database := testDB(t)
	repo := NewStoryRepository(database)
	seedUser(t, database, "alice")
	seedUser(t, database, "bob")

	now := time.Now().UTC()
	seedStory(t, repo, "s1", "alice", now, 24*time.Hour)

	for i := 0; i < 3; i++ {
		err := repo.AddView("s1", "bob", now.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("add view %d: %v", i, err)
		}
	}

	story, err := repo.ByID("s1")
	if err != nil {
		t.Fatalf("by id: %v", err)
	}

	if len(story.ViewedBy) != 1 {
		t.Fatalf("got %d viewers, want 1", len(story.ViewedBy))
	}
	if story.ViewedBy[0] != "bob" {
		t.Errorf("got viewer %q, want %q", story.ViewedBy[0], "bob")
	}
}

func TestStoryViewsPreserveOrder(t *testing.T) {
	database := testDB(t)
	repo := NewStoryRepository(database)
	seedUser(t, database, "alice")
	seedUser(t, database, "bob")
	seedUser(t, database, "carol")

	now := time.Now().UTC()
	seedStory(t, repo, "s1", "alice", now, 24*time.Hour)

	err := repo.AddView("s1", "carol", now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("add view: %v", err)
	}
	err = repo.AddView("s1", "bob", now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("add view: %v", err)
	}

	stories, err := repo.Recent(now)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(stories) != 1 {
		t.Fatalf("got %d stories, want 1", len(stories))
	}

	want := []string{"carol", "bob"}
	got := stories[0].ViewedBy
	if len(got) != len(want) {
		t.Fatalf("got %d viewers, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("viewer %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStoryDelete(t *testing.T) {
	database := testDB(t)
	repo := NewStoryRepository(database)
	seedUser(t, database, "alice")

	now := time.Now().UTC()
	seedStory(t, repo, "s1", "alice", now, 24*time.Hour)

	err := repo.Delete("s1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err = repo.ByID("s1")
	if err != ErrStoryNotFound {
		t.Errorf("got %v, want ErrStoryNotFound", err)
	}

	err = repo.Delete("s1")
	if err != ErrStoryNotFound {
		t.Errorf("double delete: got %v, want ErrStoryNotFound", err)
	}
}

func TestStoryExpiredBefore(t *testing.T) {
	database := testDB(t)
	repo := NewStoryRepository(database)
	seedUser(t, database, "alice")

	now := time.Now().UTC()
	seedStory(t, repo, "old", "alice", now.Add(-10*24*time.Hour), 24*time.Hour)
	seedStory(t, repo, "recent-expired", "alice", now.Add(-2*24*time.Hour), 24*time.Hour)
	seedStory(t, repo, "active", "alice", now.Add(-1*time.Hour), 24*time.Hour)

	cutoff := now.Add(-7 * 24 * time.Hour)
	expired, err := repo.ExpiredBefore(cutoff)
	if err != nil {
		t.Fatalf("expired before: %v", err)
	}

	if len(expired) != 1 {
		t.Fatalf("got %d stories, want 1", len(expired))
	}
	if expired[0].ID != "old" {
		t.Errorf("got story %q, want %q", expired[0].ID, "old")
	}
}
