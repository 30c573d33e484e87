package storyviewer

import (
	"time"

	"github.com/snapgram/snapgram/internal/model"
)

// Ring is the visual treatment of a story card in the horizontal bar.
type Ring string

const (
	// RingGradient marks a story the current viewer has not seen yet
	RingGradient Ring = "gradient"
	// RingMuted marks an already viewed story
	RingMuted Ring = "muted"
)

// RingFor picks the ring treatment by testing the viewer's membership
// in the story's viewed set.
func RingFor(story *model.Story, viewerID string) Ring {
	if story.Viewed(viewerID) {
		return RingMuted
	}
	return RingGradient
}

// Badge is an overlay flag on a story card in the per-user grid.
type Badge string

const (
	BadgeNone    Badge = ""
	BadgeExpired Badge = "expired"
)

// BadgeFor evaluates expiry against the given instant. The result is
// never cached; callers re-evaluate on every render.
func BadgeFor(story *model.Story, now time.Time) Badge {
	if story.Expired(now) {
		return BadgeExpired
	}
	return BadgeNone
}
