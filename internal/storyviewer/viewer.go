package storyviewer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/snapgram/snapgram/internal/model"
)

var (
	ErrAlreadyOpen = errors.New("viewer already open")
	ErrNoStory     = errors.New("no story to open")
)

// ViewMarker records that a viewer has seen a story. The story service
// satisfies this.
type ViewMarker interface {
	MarkViewed(storyID, viewerID string) (*model.Story, error)
}

// State of the viewer: Closed -> Open -> Closed. The machine shows
// exactly one story per open; there is no sequential advance across a
// user's story set.
type State int

const (
	Closed State = iota
	Open
)

// Viewer is the full-screen story presentation machine. Opening a
// story starts a countdown that drains a progress value from 100 to 0
// over the configured duration, closing automatically when it runs
// out. An Escape key closes immediately. Every exit path stops the
// frame loop and detaches key handling; nothing survives the
// transition back to Closed.
type Viewer struct {
	marker   ViewMarker
	duration time.Duration
	frame    time.Duration

	mu       sync.Mutex
	state    State
	story    *model.Story
	progress float64
	openedAt time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	now      func() time.Time
}

func New(marker ViewMarker, duration time.Duration) *Viewer {
	return &Viewer{
		marker:   marker,
		duration: duration,
		frame:    16 * time.Millisecond, // ~60fps
		now:      time.Now,
	}
}

// Open transitions Closed -> Open(story) and starts the countdown.
// If viewerID has not seen the story yet, the view is recorded as a
// fire-and-forget side effect: a tracking failure is logged and the
// story still shows.
func (v *Viewer) Open(story *model.Story, viewerID string) error {
	if story == nil {
		return ErrNoStory
	}

	v.mu.Lock()
	if v.state == Open {
		v.mu.Unlock()
		return ErrAlreadyOpen
	}

	ctx, cancel := context.WithCancel(context.Background())
	v.state = Open
	v.story = story
	v.progress = 100
	v.openedAt = v.now()
	v.cancel = cancel
	v.done = make(chan struct{})
	done := v.done
	v.mu.Unlock()

	if !story.Viewed(viewerID) {
		go func() {
			_, err := v.marker.MarkViewed(story.ID, viewerID)
			if err != nil {
				slog.Warn("failed to mark story viewed", "storyId", story.ID, "viewerId", viewerID, "error", err)
			}
		}()
	}

	go v.run(ctx, done)

	return nil
}

// run is the frame loop: it recomputes progress every frame and closes
// the viewer when the duration has elapsed. Canceling ctx stops the
// loop without closing twice.
func (v *Viewer) run(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(v.frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if v.tick(done) {
				return
			}
		}
	}
}

// tick advances the countdown one frame. Returns true when the session
// ended.
func (v *Viewer) tick(done chan struct{}) bool {
	v.mu.Lock()

	if v.state != Open || v.done != done {
		v.mu.Unlock()
		return true
	}

	elapsed := v.now().Sub(v.openedAt)
	remaining := 100 * (1 - float64(elapsed)/float64(v.duration))
	if remaining < 0 {
		remaining = 0
	}
	v.progress = remaining

	if elapsed >= v.duration {
		v.closeLocked()
		v.mu.Unlock()
		return true
	}

	v.mu.Unlock()
	return false
}

// HandleKey feeds a key press into the viewer. Escape closes an open
// viewer immediately; every other key, and any key while Closed, is
// ignored.
func (v *Viewer) HandleKey(key string) {
	if key != "Escape" {
		return
	}
	v.Close()
}

// Close transitions back to Closed from any path, canceling the frame
// loop. Closing an already closed viewer is a no-op.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Open {
		return
	}
	v.closeLocked()
}

// closeLocked tears the open session down. Callers hold v.mu.
func (v *Viewer) closeLocked() {
	v.state = Closed
	v.story = nil
	v.cancel()
	v.cancel = nil
	close(v.done)
}

// State returns the current machine state.
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Story returns the story being shown, or nil when Closed.
func (v *Viewer) Story() *model.Story {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.story
}

// Progress returns the countdown value in [0, 100], 100 at open.
func (v *Viewer) Progress() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.progress
}

// Done returns a channel closed when the current open session ends.
// Returns nil if the viewer was never opened.
func (v *Viewer) Done() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.done
}
