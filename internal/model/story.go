package model

import (
	"time"
)

type Story struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	MediaURL  string    `db:"media_url" json:"mediaUrl"`
	MediaID   string    `db:"media_id" json:"mediaId"`
	Caption   string    `db:"caption" json:"caption,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`

	// Loaded from story_views in view order (not a column)
	ViewedBy []string `db:"-" json:"viewedBy"`
}

// Active reports whether the story has not yet expired at the given
// instant. Expiry is a time-varying predicate, never a stored flag:
// two evaluations at different instants may disagree.
func (s *Story) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// Expired is the render-time check behind the "Expired" badge
func (s *Story) Expired(now time.Time) bool {
	return !s.Active(now)
}

// Viewed reports whether viewerID has already opened the story
func (s *Story) Viewed(viewerID string) bool {
	for _, id := range s.ViewedBy {
		if id == viewerID {
			return true
		}
	}
	return false
}

type StoryView struct {
	StoryID  string    `db:"story_id" json:"storyId"`
	ViewerID string    `db:"viewer_id" json:"viewerId"`
	ViewedAt time.Time `db:"viewed_at" json:"viewedAt"`
}
