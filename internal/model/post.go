package model

import (
	"strings"
	"time"
)

type Post struct {
	ID        string    `db:"id" json:"id"`
	CreatorID string    `db:"creator_id" json:"creatorId"`
	Caption   string    `db:"caption" json:"caption"`
	ImageURL  string    `db:"image_url" json:"imageUrl"`
	ImageID   string    `db:"image_id" json:"imageId"`
	Location  string    `db:"location" json:"location,omitempty"`
	Tags      string    `db:"tags" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	// Loaded from post_likes (not a column)
	Likes []string `db:"-" json:"likes"`
}

// TagList splits the stored comma-separated tag string
func (p *Post) TagList() []string {
	if p.Tags == "" {
		return nil
	}
	return strings.Split(p.Tags, ",")
}

// LikedBy reports whether userID has liked the post
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// ParseTags normalizes a user-entered tag string ("art, travel") into
// the stored comma-separated form with spaces removed
func ParseTags(tags string) string {
	return strings.ReplaceAll(tags, " ", "")
}
