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
	ErrUserNotFound = errors.New("user not found")
)

type UserService struct {
	repo     repository.UserRepository
	storage  storage.Storage
	pageSize int
	now      func() time.Time
}

func NewUserService(repo repository.UserRepository, storage storage.Storage, pageSize int) *UserService {
	return &UserService{
		repo:     repo,
		storage:  storage,
		pageSize: pageSize,
		now:      time.Now,
	}
}

func (s *UserService) ByID(userID string) (*model.User, error) {
	user, err := s.repo.ByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Page returns one page of users plus the cursor for the next page.
func (s *UserService) Page(cursor string) ([]*model.User, string, error) {
	users, err := s.repo.List(cursor, s.pageSize)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(users) == s.pageSize {
		next = users[len(users)-1].ID
	}

	return users, next, nil
}

// UpdateProfile edits name and bio, optionally swapping the avatar.
// The old avatar blob is deleted only after the update succeeds.
func (s *UserService) UpdateProfile(userID, name, bio string, avatar io.Reader, filename string) (*model.User, error) {
	user, err := s.ByID(userID)
	if err != nil {
		return nil, err
	}

	oldImageID := user.ImageID
	newImageID := ""

	if avatar != nil {
		newImageID = fmt.Sprintf("avatars/%s%s", uuid.New().String(), filepath.Ext(filename))

		err = s.storage.Save(newImageID, avatar)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUpload, err)
		}

		imageURL, err := s.storage.ResolveURL(newImageID)
		if err != nil {
			s.cleanupBlob(newImageID)
			return nil, fmt.Errorf("%w: %w", ErrMediaResolution, err)
		}

		user.ImageID = newImageID
		user.ImageURL = imageURL
	}

	user.Name = name
	user.Bio = bio
	user.UpdatedAt = s.now()

	err = s.repo.Update(user)
	if err != nil {
		if newImageID != "" {
			s.cleanupBlob(newImageID)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if newImageID != "" && oldImageID != "" {
		s.cleanupBlob(oldImageID)
	}

	return user, nil
}

func (s *UserService) cleanupBlob(imageID string) {
	err := s.storage.Delete(imageID)
	if err != nil {
		slog.Error("failed to delete blob during cleanup", "imageId", imageID, "error", err)
	}
}
