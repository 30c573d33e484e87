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
	ErrPostNotFound = errors.New("post not found")
	ErrNotSaved     = errors.New("post not saved")
)

type PostService struct {
	repo     repository.PostRepository
	saveRepo repository.SaveRepository
	storage  storage.Storage
	pageSize int
	now      func() time.Time
}

func NewPostService(repo repository.PostRepository, saveRepo repository.SaveRepository, storage storage.Storage, pageSize int) *PostService {
	return &PostService{
		repo:     repo,
		saveRepo: saveRepo,
		storage:  storage,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// Create runs the same media pipeline as stories: upload, resolve,
// persist, with blob cleanup on every failure past the upload.
func (s *PostService) Create(creatorID string, image io.Reader, filename, caption, location, tags string) (*model.Post, error) {
	imageID := fmt.Sprintf("posts/%s%s", uuid.New().String(), filepath.Ext(filename))

	err := s.storage.Save(imageID, image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}

	imageURL, err := s.storage.ResolveURL(imageID)
	if err != nil {
		s.cleanupBlob(imageID)
		return nil, fmt.Errorf("%w: %w", ErrMediaResolution, err)
	}

	now := s.now()
	post := &model.Post{
		ID:        uuid.New().String(),
		CreatorID: creatorID,
		Caption:   caption,
		ImageURL:  imageURL,
		ImageID:   imageID,
		Location:  location,
		Tags:      model.ParseTags(tags),
		CreatedAt: now,
		UpdatedAt: now,
		Likes:     []string{},
	}

	err = s.repo.Create(post)
	if err != nil {
		s.cleanupBlob(imageID)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return post, nil
}

func (s *PostService) ByID(postID string) (*model.Post, error) {
	post, err := s.repo.ByID(postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return post, nil
}

func (s *PostService) Recent(limit int) ([]*model.Post, error) {
	return s.repo.Recent(limit)
}

// Page returns one page of posts plus the cursor for the next page.
// An empty next cursor means the final page.
func (s *PostService) Page(cursor string) ([]*model.Post, string, error) {
	posts, err := s.repo.List(cursor, s.pageSize)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(posts) == s.pageSize {
		next = posts[len(posts)-1].ID
	}

	return posts, next, nil
}

func (s *PostService) Search(term string) ([]*model.Post, error) {
	return s.repo.Search(term)
}

// Update edits the post, optionally swapping its image. The old blob is
// deleted only after the document update succeeds; a freshly uploaded
// replacement is cleaned up if anything after its upload fails.
func (s *PostService) Update(postID, caption, location, tags string, image io.Reader, filename string) (*model.Post, error) {
	post, err := s.ByID(postID)
	if err != nil {
		return nil, err
	}

	oldImageID := post.ImageID
	newImageID := ""

	if image != nil {
		newImageID = fmt.Sprintf("posts/%s%s", uuid.New().String(), filepath.Ext(filename))

		err = s.storage.Save(newImageID, image)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUpload, err)
		}

		imageURL, err := s.storage.ResolveURL(newImageID)
		if err != nil {
			s.cleanupBlob(newImageID)
			return nil, fmt.Errorf("%w: %w", ErrMediaResolution, err)
		}

		post.ImageID = newImageID
		post.ImageURL = imageURL
	}

	post.Caption = caption
	post.Location = location
	post.Tags = model.ParseTags(tags)
	post.UpdatedAt = s.now()

	err = s.repo.Update(post)
	if err != nil {
		if newImageID != "" {
			s.cleanupBlob(newImageID)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if newImageID != "" && oldImageID != "" {
		s.cleanupBlob(oldImageID)
	}

	return post, nil
}

// Delete removes the post document, then its image, same order and
// same orphan tolerance as story deletion.
func (s *PostService) Delete(postID, imageID string) error {
	err := s.repo.Delete(postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	err = s.storage.Delete(imageID)
	if err != nil {
		slog.Warn("post image blob orphaned after delete", "imageId", imageID, "error", err)
	}

	return nil
}

// Like replaces the post's like set with the array sent by the client.
func (s *PostService) Like(postID string, likes []string) (*model.Post, error) {
	err := s.repo.SetLikes(postID, likes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return s.ByID(postID)
}

// Save records the post in the user's saved collection. Saving a post
// twice returns the existing record.
func (s *PostService) Save(userID, postID string) (*model.Save, error) {
	existing, err := s.saveRepo.ByUserAndPost(userID, postID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrSaveNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	save := &model.Save{
		ID:        uuid.New().String(),
		UserID:    userID,
		PostID:    postID,
		CreatedAt: s.now(),
	}

	err = s.saveRepo.Create(save)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return save, nil
}

func (s *PostService) Unsave(saveID string) error {
	err := s.saveRepo.Delete(saveID)
	if err != nil {
		if errors.Is(err, repository.ErrSaveNotFound) {
			return ErrNotSaved
		}
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func (s *PostService) SavedByUser(userID string) ([]*model.Save, error) {
	return s.saveRepo.ByUser(userID)
}

func (s *PostService) cleanupBlob(imageID string) {
	err := s.storage.Delete(imageID)
	if err != nil {
		slog.Error("failed to delete blob during cleanup", "imageId", imageID, "error", err)
	}
}
