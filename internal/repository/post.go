package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/snapgram/snapgram/internal/model"
)

var (
	ErrPostNotFound = errors.New("post not found")
)

type PostRepository interface {
	Create(post *model.Post) error
	ByID(id string) (*model.Post, error)
	Recent(limit int) ([]*model.Post, error)
	List(cursor string, limit int) ([]*model.Post, error)
	Search(term string) ([]*model.Post, error)
	Update(post *model.Post) error
	SetLikes(postID string, userIDs []string) error
	Delete(id string) error
}

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(post *model.Post) error {
	query := `INSERT INTO posts (id, creator_id, caption, image_url, image_id, location, tags, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		post.ID,
		post.CreatorID,
		post.Caption,
		post.ImageURL,
		post.ImageID,
		post.Location,
		post.Tags,
		post.CreatedAt,
		post.UpdatedAt,
	)

	return err
}

func (r *postRepository) ByID(id string) (*model.Post, error) {
	post := &model.Post{}
	query := `SELECT * FROM posts WHERE id = $1`

	err := r.db.Get(post, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}

	err = r.loadLikes(post)
	if err != nil {
		return nil, err
	}

	return post, nil
}

func (r *postRepository) Recent(limit int) ([]*model.Post, error) {
	var posts []*model.Post
	query := `SELECT * FROM posts ORDER BY created_at DESC LIMIT $1`

	err := r.db.Select(&posts, query, limit)
	if err != nil {
		return nil, err
	}

	err = r.loadLikesAll(posts)
	if err != nil {
		return nil, err
	}

	return posts, nil
}

// List pages through posts newest-updated first by id cursor.
func (r *postRepository) List(cursor string, limit int) ([]*model.Post, error) {
	var posts []*model.Post

	if cursor == "" {
		query := `SELECT * FROM posts ORDER BY updated_at DESC, id DESC LIMIT $1`
		err := r.db.Select(&posts, query, limit)
		if err != nil {
			return nil, err
		}
		return posts, r.loadLikesAll(posts)
	}

	query := `SELECT * FROM posts
	          WHERE (updated_at, id) < (SELECT updated_at, id FROM posts WHERE id = $1)
	          ORDER BY updated_at DESC, id DESC LIMIT $2`
	err := r.db.Select(&posts, query, cursor, limit)
	if err != nil {
		return nil, err
	}

	return posts, r.loadLikesAll(posts)
}

func (r *postRepository) Search(term string) ([]*model.Post, error) {
	var posts []*model.Post
	query := `SELECT * FROM posts WHERE caption LIKE $1 ORDER BY created_at DESC`

	err := r.db.Select(&posts, query, "%"+term+"%")
	if err != nil {
		return nil, err
	}

	return posts, r.loadLikesAll(posts)
}

func (r *postRepository) Update(post *model.Post) error {
	query := `UPDATE posts
	          SET caption = $1, image_url = $2, image_id = $3, location = $4, tags = $5, updated_at = $6
	          WHERE id = $7`

	result, err := r.db.Exec(query,
		post.Caption,
		post.ImageURL,
		post.ImageID,
		post.Location,
		post.Tags,
		post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrPostNotFound
	}

	return nil
}

// SetLikes replaces the post's like set with the given user ids,
// mirroring the client contract of sending the full likes array.
func (r *postRepository) SetLikes(postID string, userIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM post_likes WHERE post_id = $1`, postID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, userID := range userIDs {
		_, err = tx.Exec(`INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3)
		                  ON CONFLICT (post_id, user_id) DO NOTHING`, postID, userID, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *postRepository) Delete(id string) error {
	query := `DELETE FROM posts WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrPostNotFound
	}

	return nil
}

func (r *postRepository) loadLikes(post *model.Post) error {
	var likes []string
	query := `SELECT user_id FROM post_likes WHERE post_id = $1 ORDER BY created_at ASC`

	err := r.db.Select(&likes, query, post.ID)
	if err != nil {
		return err
	}

	post.Likes = likes
	return nil
}

func (r *postRepository) loadLikesAll(posts []*model.Post) error {
	for _, post := range posts {
		err := r.loadLikes(post)
		if err != nil {
			return err
		}
	}
	return nil
}
