package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/snapgram/snapgram/internal/repository"
	"github.com/snapgram/snapgram/internal/storage"
)

// Janitor reaps stories that expired longer than the retention period
// ago. Retention is an explicit opt-in: with retention 0 the janitor
// never runs and expired stories stay queryable forever, matching the
// behavior of keeping them filtered out of the feed only. Feed
// correctness never depends on the janitor; the recent-stories query
// filters on expiry regardless.
type Janitor struct {
	repo      repository.StoryRepository
	storage   storage.Storage
	retention time.Duration
	now       func() time.Time
}

func NewJanitor(repo repository.StoryRepository, storage storage.Storage, retention time.Duration) *Janitor {
	return &Janitor{
		repo:      repo,
		storage:   storage,
		retention: retention,
		now:       time.Now,
	}
}

// Run sweeps on the given interval until ctx is canceled. No-op when
// retention is disabled.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	if j.retention <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep deletes every story past retention, document first, then blob.
func (j *Janitor) Sweep() {
	cutoff := j.now().Add(-j.retention)

	stories, err := j.repo.ExpiredBefore(cutoff)
	if err != nil {
		slog.Error("retention sweep query failed", "error", err)
		return
	}

	for _, story := range stories {
		err = j.repo.Delete(story.ID)
		if err != nil {
			slog.Error("retention sweep failed to delete story", "storyId", story.ID, "error", err)
			continue
		}

		err = j.storage.Delete(story.MediaID)
		if err != nil {
			slog.Warn("retention sweep orphaned a blob", "mediaId", story.MediaID, "error", err)
		}
	}

	if len(stories) > 0 {
		slog.Info("retention sweep completed", "reaped", len(stories))
	}
}
