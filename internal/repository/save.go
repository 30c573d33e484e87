package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/snapgram/snapgram/internal/model"
)

var (
	ErrSaveNotFound = errors.New("save not found")
)

type SaveRepository interface {
	Create(save *model.Save) error
	ByUser(userID string) ([]*model.Save, error)
	ByUserAndPost(userID, postID string) (*model.Save, error)
	Delete(id string) error
}

type saveRepository struct {
	db *sqlx.DB
}

func NewSaveRepository(db *sqlx.DB) SaveRepository {
	return &saveRepository{db: db}
}

func (r *saveRepository) Create(save *model.Save) error {
	query := `INSERT INTO saves (id, user_id, post_id, created_at)
	          VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(query, save.ID, save.UserID, save.PostID, save.CreatedAt)
	return err
}

func (r *saveRepository) ByUser(userID string) ([]*model.Save, error) {
	var saves []*model.Save
	query := `SELECT * FROM saves WHERE user_id = $1 ORDER BY created_at DESC`

	err := r.db.Select(&saves, query, userID)
	if err != nil {
		return nil, err
	}

	return saves, nil
}

func (r *saveRepository) ByUserAndPost(userID, postID string) (*model.Save, error) {
	save := &model.Save{}
	query := `SELECT * FROM saves WHERE user_id = $1 AND post_id = $2`

	err := r.db.Get(save, query, userID, postID)
	if err == sql.ErrNoRows {
		return nil, ErrSaveNotFound
	}

	return save, err
}

func (r *saveRepository) Delete(id string) error {
	query := `DELETE FROM saves WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrSaveNotFound
	}

	return nil
}
