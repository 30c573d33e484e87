package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/snapgram/snapgram/internal/model"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

type UserRepository interface {
	Create(user *model.User) error
	ByID(id string) (*model.User, error)
	ByEmail(email string) (*model.User, error)
	List(cursor string, limit int) ([]*model.User, error)
	Update(user *model.User) error
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *model.User) error {
	query := `INSERT INTO users (id, email, username, name, bio, image_url, image_id, password_hash, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(query,
		user.ID,
		user.Email,
		user.Username,
		user.Name,
		user.Bio,
		user.ImageURL,
		user.ImageID,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)

	return err
}

func (r *userRepository) ByID(id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.Get(user, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) ByEmail(email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE email = $1`

	err := r.db.Get(user, query, email)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return user, err
}

// List pages through users by id cursor. An empty cursor starts from
// the beginning; callers pass the last id of the previous page.
func (r *userRepository) List(cursor string, limit int) ([]*model.User, error) {
	var users []*model.User

	if cursor == "" {
		query := `SELECT * FROM users ORDER BY id ASC LIMIT $1`
		err := r.db.Select(&users, query, limit)
		return users, err
	}

	query := `SELECT * FROM users WHERE id > $1 ORDER BY id ASC LIMIT $2`
	err := r.db.Select(&users, query, cursor, limit)
	return users, err
}

func (r *userRepository) Update(user *model.User) error {
	query := `UPDATE users
	          SET name = $1, bio = $2, image_url = $3, image_id = $4, updated_at = $5
	          WHERE id = $6`

	result, err := r.db.Exec(query,
		user.Name,
		user.Bio,
		user.ImageURL,
		user.ImageID,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}
