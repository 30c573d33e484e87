package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/snapgram/snapgram/internal/model"
	"github.com/snapgram/snapgram/internal/repository"
)

var (
	ErrCommentNotFound = errors.New("comment not found")
)

type CommentService struct {
	repo repository.CommentRepository
	now  func() time.Time
}

func NewCommentService(repo repository.CommentRepository) *CommentService {
	return &CommentService{repo: repo, now: time.Now}
}

func (s *CommentService) Create(userID, postID, content string) (*model.Comment, error) {
	comment := &model.Comment{
		ID:        uuid.New().String(),
		UserID:    userID,
		PostID:    postID,
		Content:   content,
		CreatedAt: s.now(),
	}

	err := s.repo.Create(comment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return comment, nil
}

func (s *CommentService) ByID(commentID string) (*model.Comment, error) {
	comment, err := s.repo.ByID(commentID)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) ByPost(postID string) ([]*model.Comment, error) {
	return s.repo.ByPost(postID)
}

func (s *CommentService) Delete(commentID string) error {
	err := s.repo.Delete(commentID)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
