package service

import (
	"testing"
	"time"

	"github.com/snapgram/snapgram/internal/model"
)

func TestJanitorSweepReapsOnlyPastRetention(t *testing.T) {
	repo := newFakeStoryRepo()
	store := &fakeStorage{}
	j := NewJanitor(repo, store, 7*24*time.Hour)

	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return frozen }

	repo.stories["old"] = &model.Story{ID: "old", MediaID: "blob-old", ExpiresAt: frozen.Add(-8 * 24 * time.Hour)}
	repo.stories["expired"] = &model.Story{ID: "expired", MediaID: "blob-expired", ExpiresAt: frozen.Add(-time.Hour)}
	repo.stories["active"] = &model.Story{ID: "active", MediaID: "blob-active", ExpiresAt: frozen.Add(time.Hour)}

	j.Sweep()

	if _, ok := repo.stories["old"]; ok {
		t.Error("story past retention should be reaped")
	}
	if _, ok := repo.stories["expired"]; !ok {
		t.Error("expired story inside retention must survive")
	}
	if _, ok := repo.stories["active"]; !ok {
		t.Error("active story must survive")
	}
	if len(store.deleted) != 1 || store.deleted[0] != "blob-old" {
		t.Errorf("deleted blobs = %v, want [blob-old]", store.deleted)
	}
}

func TestJanitorDisabledRetentionNeverSweeps(t *testing.T) {
	repo := newFakeStoryRepo()
	store := &fakeStorage{}
	j := NewJanitor(repo, store, 0)

	repo.stories["ancient"] = &model.Story{ID: "ancient", MediaID: "blob-a", ExpiresAt: time.Now().Add(-365 * 24 * time.Hour)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		j.Run(t.Context(), time.Millisecond)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with retention disabled should return immediately")
	}

	if _, ok := repo.stories["ancient"]; !ok {
		t.Error("disabled retention must keep expired stories")
	}
}
