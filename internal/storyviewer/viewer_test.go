package storyviewer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/snapgram/snapgram/internal/model"
)

type fakeMarker struct {
	mu    sync.Mutex
	calls [][2]string
	err   error
}

func (f *fakeMarker) MarkViewed(storyID, viewerID string) (*model.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [2]string{storyID, viewerID})
	if f.err != nil {
		return nil, f.err
	}
	return &model.Story{ID: storyID, ViewedBy: []string{viewerID}}, nil
}

func (f *fakeMarker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func waitDone(t *testing.T, v *Viewer) {
	t.Helper()
	select {
	case <-v.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("viewer did not close in time")
	}
}

func TestOpenStartsAtFullProgress(t *testing.T) {
	v := New(&fakeMarker{}, time.Hour)

	story := &model.Story{ID: "s1"}
	err := v.Open(story, "bob")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	if v.State() != Open {
		t.Errorf("state = %v, want Open", v.State())
	}
	if v.Progress() != 100 {
		t.Errorf("progress = %v, want 100", v.Progress())
	}
	if v.Story() != story {
		t.Error("viewer should expose the opened story")
	}
}

func TestOpenNilStory(t *testing.T) {
	v := New(&fakeMarker{}, time.Hour)

	err := v.Open(nil, "bob")
	if !errors.Is(err, ErrNoStory) {
		t.Fatalf("got %v, want ErrNoStory", err)
	}
	if v.State() != Closed {
		t.Errorf("state = %v, want Closed", v.State())
	}
}

func TestOpenWhileOpen(t *testing.T) {
	v := New(&fakeMarker{}, time.Hour)

	err := v.Open(&model.Story{ID: "s1"}, "bob")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	err = v.Open(&model.Story{ID: "s2"}, "bob")
	if !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("got %v, want ErrAlreadyOpen", err)
	}
	if v.Story().ID != "s1" {
		t.Errorf("showing %q, want the first story", v.Story().ID)
	}
}

func TestOpenMarksUnseenStory(t *testing.T) {
	marker := &fakeMarker{}
	v := New(marker, time.Hour)

	err := v.Open(&model.Story{ID: "s1"}, "bob")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	deadline := time.Now().Add(2 * time.Second)
	for marker.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if marker.callCount() != 1 {
		t.Fatalf("marker called %d times, want 1", marker.callCount())
	}
}

func TestOpenSkipsAlreadyViewed(t *testing.T) {
	marker := &fakeMarker{}
	v := New(marker, time.Hour)

	err := v.Open(&model.Story{ID: "s1", ViewedBy: []string{"bob"}}, "bob")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	time.Sleep(50 * time.Millisecond)
	if marker.callCount() != 0 {
		t.Errorf("marker called %d times, want 0 for an already viewed story", marker.callCount())
	}
}

func TestTrackingFailureDoesNotCloseViewer(t *testing.T) {
	marker := &fakeMarker{err: errors.New("db down")}
	v := New(marker, time.Hour)

	err := v.Open(&model.Story{ID: "s1"}, "bob")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	deadline := time.Now().Add(2 * time.Second)
	for marker.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if v.State() != Open {
		t.Error("a view tracking failure must not close the viewer")
	}
}

func TestAutoCloseWhenCountdownRunsOut(t *testing.T) {
	v := New(&fakeMarker{}, 60*time.Millisecond)

	err := v.Open(&model.Story{ID: "s1"}, "bob")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	waitDone(t, v)

	if v.State() != Closed {
		t.Errorf("state = %v, want Closed after countdown", v.State())
	}
	if v.Story() != nil {
		t.Error("closed viewer must not retain the story")
	}
}

func TestProgressDrainsMonotonically(t *testing.T) {
	v := New(&fakeMarker{}, 200*time.Millisecond)

	err := v.Open(&model.Story{ID: "s1"}, "bob")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	last := v.Progress()
	for v.State() == Open {
		p := v.Progress()
		if p > last {
			t.Fatalf("progress went up: %v -> %v", last, p)
		}
		last = p
		time.Sleep(10 * time.Millisecond)
	}

	waitDone(t, v)
	if v.Progress() != 0 {
		t.Errorf("final progress = %v, want 0", v.Progress())
	}
}

func TestEscapeClosesImmediately(t *testing.T) {
	v := New(&fakeMarker{}, time.Hour)

	err := v.Open(&model.Story{ID: "s1"}, "bob")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	v.HandleKey("Escape")

	waitDone(t, v)
	if v.State() != Closed {
		t.Errorf("state = %v, want Closed after Escape", v.State())
	}
}

func TestOtherKeysIgnored(t *testing.T) {
	v := New(&fakeMarker{}, time.Hour)

	err := v.Open(&model.Story{ID: "s1"}, "bob")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	v.HandleKey("Enter")
	v.HandleKey("ArrowRight")
	v.HandleKey("q")

	if v.State() != Open {
		t.Errorf("state = %v, want still Open", v.State())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	v := New(&fakeMarker{}, time.Hour)

	err := v.Open(&model.Story{ID: "s1"}, "bob")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	v.Close()
	v.Close()
	v.HandleKey("Escape")

	if v.State() != Closed {
		t.Errorf("state = %v, want Closed", v.State())
	}
}

func TestReopenAfterClose(t *testing.T) {
	v := New(&fakeMarker{}, time.Hour)

	err := v.Open(&model.Story{ID: "s1", ViewedBy: []string{"bob"}}, "bob")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	v.Close()

	err = v.Open(&model.Story{ID: "s2", ViewedBy: []string{"bob"}}, "bob")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer v.Close()

	if v.Story().ID != "s2" {
		t.Errorf("showing %q, want the reopened story", v.Story().ID)
	}
	if v.Progress() != 100 {
		t.Errorf("progress = %v, want reset to 100", v.Progress())
	}
}

func TestRingForViewedMembership(t *testing.T) {
	story := &model.Story{ID: "s1", ViewedBy: []string{"bob"}}

	if got := RingFor(story, "bob"); got != RingMuted {
		t.Errorf("viewer in set: got %v, want RingMuted", got)
	}
	if got := RingFor(story, "carol"); got != RingGradient {
		t.Errorf("viewer not in set: got %v, want RingGradient", got)
	}
}

func TestBadgeForExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	active := &model.Story{ExpiresAt: now.Add(time.Hour)}
	expired := &model.Story{ExpiresAt: now.Add(-time.Hour)}

	if got := BadgeFor(active, now); got != BadgeNone {
		t.Errorf("active story: got %v, want no badge", got)
	}
	if got := BadgeFor(expired, now); got != BadgeExpired {
		t.Errorf("expired story: got %v, want BadgeExpired", got)
	}
}
