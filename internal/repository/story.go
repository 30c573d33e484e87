package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/snapgram/snapgram/internal/model"
)

var (
	ErrStoryNotFound = errors.New("story not found")
)

type StoryRepository interface {
	Create(story *model.Story) error
	ByID(id string) (*model.Story, error)
	Recent(now time.Time) ([]*model.Story, error)
	ByUser(userID string) ([]*model.Story, error)
	AddView(storyID, viewerID string, viewedAt time.Time) error
	Delete(id string) error
	ExpiredBefore(cutoff time.Time) ([]*model.Story, error)
}

type storyRepository struct {
	db *sqlx.DB
}

func NewStoryRepository(db *sqlx.DB) StoryRepository {
	return &storyRepository{db: db}
}

func (r *storyRepository) Create(story *model.Story) error {
	query := `INSERT INTO stories (id, user_id, media_url, media_id, caption, created_at, expires_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(query,
		story.ID,
		story.UserID,
		story.MediaURL,
		story.MediaID,
		story.Caption,
		story.CreatedAt,
		story.ExpiresAt,
	)

	return err
}

func (r *storyRepository) ByID(id string) (*model.Story, error) {
	story := &model.Story{}
	query := `SELECT * FROM stories WHERE id = $1`

	err := r.db.Get(story, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, err
	}

	err = r.loadViews(story)
	if err != nil {
		return nil, err
	}

	return story, nil
}

// Recent returns stories that are still active at the given instant,
// newest first. Expiry is filtered at query time; expired rows stay in
// the table until explicitly deleted.
func (r *storyRepository) Recent(now time.Time) ([]*model.Story, error) {
	var stories []*model.Story
	query := `SELECT * FROM stories WHERE expires_at > $1 ORDER BY created_at DESC`

	err := r.db.Select(&stories, query, now)
	if err != nil {
		return nil, err
	}

	err = r.loadViewsAll(stories)
	if err != nil {
		return nil, err
	}

	return stories, nil
}

// ByUser returns all of a user's stories including expired ones,
// newest first. Flagging expiry is the caller's concern on this path.
func (r *storyRepository) ByUser(userID string) ([]*model.Story, error) {
	var stories []*model.Story
	query := `SELECT * FROM stories WHERE user_id = $1 ORDER BY created_at DESC`

	err := r.db.Select(&stories, query, userID)
	if err != nil {
		return nil, err
	}

	err = r.loadViewsAll(stories)
	if err != nil {
		return nil, err
	}

	return stories, nil
}

// AddView records that viewerID has seen the story. The insert is
// add-if-absent at the storage layer, so repeated or concurrent views
// never produce duplicates and never drop a competing viewer's row.
func (r *storyRepository) AddView(storyID, viewerID string, viewedAt time.Time) error {
	query := `INSERT INTO story_views (story_id, viewer_id, viewed_at)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (story_id, viewer_id) DO NOTHING`

	_, err := r.db.Exec(query, storyID, viewerID, viewedAt)
	return err
}

func (r *storyRepository) Delete(id string) error {
	query := `DELETE FROM stories WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrStoryNotFound
	}

	return nil
}

// ExpiredBefore returns stories whose expiry passed before the cutoff,
// oldest first. Used by the retention sweep.
func (r *storyRepository) ExpiredBefore(cutoff time.Time) ([]*model.Story, error) {
	var stories []*model.Story
	query := `SELECT * FROM stories WHERE expires_at < $1 ORDER BY expires_at ASC`

	err := r.db.Select(&stories, query, cutoff)
	if err != nil {
		return nil, err
	}

	return stories, nil
}

func (r *storyRepository) loadViews(story *model.Story) error {
	var viewers []string
	query := `SELECT viewer_id FROM story_views WHERE story_id = $1 ORDER BY viewed_at ASC`

	err := r.db.Select(&viewers, query, story.ID)
	if err != nil {
		return err
	}

	story.ViewedBy = viewers
	return nil
}

func (r *storyRepository) loadViewsAll(stories []*model.Story) error {
	if len(stories) == 0 {
		return nil
	}

	ids := make([]string, len(stories))
	byID := make(map[string]*model.Story, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
		byID[s.ID] = s
	}

	query, args, err := sqlx.In(
		`SELECT story_id, viewer_id, viewed_at FROM story_views WHERE story_id IN (?) ORDER BY viewed_at ASC`, ids)
	if err != nil {
		return err
	}

	var views []*model.StoryView
	err = r.db.Select(&views, r.db.Rebind(query), args...)
	if err != nil {
		return err
	}

	for _, v := range views {
		story := byID[v.StoryID]
		if story != nil {
			story.ViewedBy = append(story.ViewedBy, v.ViewerID)
		}
	}

	return nil
}
