package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/snapgram/snapgram/internal/model"
	"github.com/snapgram/snapgram/internal/repository"
	"github.com/snapgram/snapgram/internal/storage"
)

var (
	ErrUpload          = errors.New("media upload failed")
	ErrMediaResolution = errors.New("media URL resolution failed")
	ErrPersistence     = errors.New("persistence failed")
	ErrStoryNotFound   = errors.New("story not found")
)

type StoryService struct {
	repo    repository.StoryRepository
	storage storage.Storage
	ttl     time.Duration
	now     func() time.Time
}

func NewStoryService(repo repository.StoryRepository, storage storage.Storage, ttl time.Duration) *StoryService {
	return &StoryService{
		repo:    repo,
		storage: storage,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create uploads the media, resolves its URL and persists the story
// with an expiry of now + TTL. A story must never exist without backing
// media, and an uploaded blob must never outlive a failed creation:
// every failure after the upload deletes the blob again.
func (s *StoryService) Create(userID string, media io.Reader, filename, caption string) (*model.Story, error) {
	mediaID := fmt.Sprintf("stories/%s%s", uuid.New().String(), filepath.Ext(filename))

	err := s.storage.Save(mediaID, media)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}

	mediaURL, err := s.storage.ResolveURL(mediaID)
	if err != nil {
		s.cleanupBlob(mediaID)
		return nil, fmt.Errorf("%w: %w", ErrMediaResolution, err)
	}

	now := s.now()
	story := &model.Story{
		ID:        uuid.New().String(),
		UserID:    userID,
		MediaURL:  mediaURL,
		MediaID:   mediaID,
		Caption:   caption,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		ViewedBy:  []string{},
	}

	err = s.repo.Create(story)
	if err != nil {
		s.cleanupBlob(mediaID)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return story, nil
}

func (s *StoryService) ByID(storyID string) (*model.Story, error) {
	story, err := s.repo.ByID(storyID)
	if err != nil {
		if errors.Is(err, repository.ErrStoryNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, err
	}
	return story, nil
}

// Recent returns stories still active at call time, newest first.
func (s *StoryService) Recent() ([]*model.Story, error) {
	return s.repo.Recent(s.now())
}

// ByUser returns all of a user's stories, expired ones included.
// Presentation flags expiry; this path never filters it.
func (s *StoryService) ByUser(userID string) ([]*model.Story, error) {
	return s.repo.ByUser(userID)
}

// MarkViewed records viewerID against the story. Marking a story the
// viewer has already seen is a successful no-op.
func (s *StoryService) MarkViewed(storyID, viewerID string) (*model.Story, error) {
	story, err := s.repo.ByID(storyID)
	if err != nil {
		if errors.Is(err, repository.ErrStoryNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if story.Viewed(viewerID) {
		return story, nil
	}

	err = s.repo.AddView(storyID, viewerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	story.ViewedBy = append(story.ViewedBy, viewerID)
	return story, nil
}

// Delete removes the story document, then its media blob. If the
// document delete fails the blob is left untouched. If the blob delete
// fails afterwards the story is already gone; the orphaned blob is
// logged and tolerated.
func (s *StoryService) Delete(storyID, mediaID string) error {
	err := s.repo.Delete(storyID)
	if err != nil {
		if errors.Is(err, repository.ErrStoryNotFound) {
			return ErrStoryNotFound
		}
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	err = s.storage.Delete(mediaID)
	if err != nil {
		slog.Warn("story media blob orphaned after delete", "mediaId", mediaID, "error", err)
	}

	return nil
}

func (s *StoryService) cleanupBlob(mediaID string) {
	err := s.storage.Delete(mediaID)
	if err != nil {
		slog.Error("failed to delete blob during cleanup", "mediaId", mediaID, "error", err)
	}
}
