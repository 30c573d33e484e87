package querycache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGetMemoizes(t *testing.T) {
	c := New()
	key := NewKey(OpStories)
	calls := 0

	fetch := func(ctx context.Context) (any, error) {
		calls++
		return "stories", nil
	}

	for i := 0; i < 3; i++ {
		data, err := c.Get(context.Background(), key, fetch)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if data != "stories" {
			t.Fatalf("get %d: got %v", i, data)
		}
	}

	if calls != 1 {
		t.Errorf("fetcher ran %d times, want 1", calls)
	}
}

func TestGetDoesNotCacheErrors(t *testing.T) {
	c := New()
	key := NewKey(OpRecentPosts)
	calls := 0

	fetch := func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("db down")
		}
		return "posts", nil
	}

	_, err := c.Get(context.Background(), key, fetch)
	if err == nil {
		t.Fatal("first get should fail")
	}

	data, err := c.Get(context.Background(), key, fetch)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if data != "posts" {
		t.Fatalf("second get: got %v", data)
	}
	if calls != 2 {
		t.Errorf("fetcher ran %d times, want 2", calls)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	c := New()
	key := NewKey(OpPostByID, "p1")
	calls := 0

	fetch := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	data, _ := c.Get(context.Background(), key, fetch)
	if data != 1 {
		t.Fatalf("got %v, want 1", data)
	}

	c.Invalidate(key)

	data, _ = c.Get(context.Background(), key, fetch)
	if data != 2 {
		t.Fatalf("after invalidation got %v, want 2", data)
	}
}

func TestInvalidateOpDropsAllParams(t *testing.T) {
	c := New()
	fetch := func(v any) Fetcher {
		return func(ctx context.Context) (any, error) { return v, nil }
	}

	_, _ = c.Get(context.Background(), NewKey(OpPosts, "cursor-a"), fetch("a"))
	_, _ = c.Get(context.Background(), NewKey(OpPosts, "cursor-b"), fetch("b"))
	_, _ = c.Get(context.Background(), NewKey(OpStories), fetch("s"))

	c.InvalidateOp(OpPosts)

	data, _ := c.Get(context.Background(), NewKey(OpPosts, "cursor-a"), fetch("a2"))
	if data != "a2" {
		t.Errorf("posts/cursor-a should have been invalidated, got %v", data)
	}
	data, _ = c.Get(context.Background(), NewKey(OpStories), fetch("s2"))
	if data != "s" {
		t.Errorf("stories should have survived, got %v", data)
	}
}

func TestInvalidateOpNoPrefixBleed(t *testing.T) {
	c := New()
	fetch := func(v any) Fetcher {
		return func(ctx context.Context) (any, error) { return v, nil }
	}

	_, _ = c.Get(context.Background(), NewKey("post"), fetch("short"))
	_, _ = c.Get(context.Background(), NewKey("posts", "x"), fetch("long"))

	c.InvalidateOp("post")

	data, _ := c.Get(context.Background(), NewKey("posts", "x"), fetch("fresh"))
	if data != "long" {
		t.Errorf("\"posts/x\" must not match op \"post\", got %v", data)
	}
}

// A read issued after Mutate returns must observe the post-mutation
// state, never a stale cached value.
func TestMutateInvalidatesBeforeReturning(t *testing.T) {
	c := New()
	key := NewKey(OpStories)

	value := "before"
	fetch := func(ctx context.Context) (any, error) {
		return value, nil
	}

	data, _ := c.Get(context.Background(), key, fetch)
	if data != "before" {
		t.Fatalf("got %v", data)
	}

	_, err := c.Mutate(context.Background(), Mutation{
		Do: func(ctx context.Context) (any, error) {
			value = "after"
			return nil, nil
		},
		Invalidates: []Key{key},
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	data, _ = c.Get(context.Background(), key, fetch)
	if data != "after" {
		t.Errorf("read after mutate got %v, want %v", data, "after")
	}
}

func TestMutateFailureInvalidatesNothing(t *testing.T) {
	c := New()
	key := NewKey(OpStories)

	fetch := func(ctx context.Context) (any, error) { return "cached", nil }
	_, _ = c.Get(context.Background(), key, fetch)

	_, err := c.Mutate(context.Background(), Mutation{
		Do: func(ctx context.Context) (any, error) {
			return nil, errors.New("write failed")
		},
		Invalidates: []Key{key},
	})
	if err == nil {
		t.Fatal("mutate should fail")
	}

	poisoned := func(ctx context.Context) (any, error) { return "refetched", nil }
	data, _ := c.Get(context.Background(), key, poisoned)
	if data != "cached" {
		t.Errorf("failed mutation must leave the cache intact, got %v", data)
	}
}

func TestMutateInvalidatesForResult(t *testing.T) {
	c := New()
	fetch := func(v any) Fetcher {
		return func(ctx context.Context) (any, error) { return v, nil }
	}

	_, _ = c.Get(context.Background(), NewKey(OpPostByID, "p7"), fetch("old"))

	_, err := c.Mutate(context.Background(), Mutation{
		Do: func(ctx context.Context) (any, error) {
			return "p7", nil
		},
		InvalidatesFor: func(result any) []Key {
			return []Key{NewKey(OpPostByID, result.(string))}
		},
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	data, _ := c.Get(context.Background(), NewKey(OpPostByID, "p7"), fetch("new"))
	if data != "new" {
		t.Errorf("result-derived key should have been invalidated, got %v", data)
	}
}

func TestConcurrentGetSharesOneFetch(t *testing.T) {
	c := New()
	key := NewKey(OpUsers)

	var mu sync.Mutex
	calls := 0
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(ctx context.Context) (any, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-release
		}
		return "users", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Get(context.Background(), key, fetch)
		}()
	}

	<-started
	if !c.InFlight(key) {
		t.Error("InFlight should report the running fetch")
	}
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("fetcher ran %d times, want 1", calls)
	}
	if c.InFlight(key) {
		t.Error("InFlight should clear once the fetch finishes")
	}
}

func TestRefreshStaleUpdatesPolledEntries(t *testing.T) {
	c := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := NewKey(OpStories)
	version := 0
	fetch := func(ctx context.Context) (any, error) {
		version++
		return version, nil
	}

	data, _ := c.Get(context.Background(), key, fetch, WithRefresh(60*time.Second))
	if data != 1 {
		t.Fatalf("got %v, want 1", data)
	}

	// Not due yet.
	now = now.Add(30 * time.Second)
	c.refreshStale(context.Background())
	data, _ = c.Get(context.Background(), key, fetch)
	if data != 1 {
		t.Fatalf("refreshed too early, got %v", data)
	}

	now = now.Add(31 * time.Second)
	c.refreshStale(context.Background())
	data, _ = c.Get(context.Background(), key, fetch)
	if data != 2 {
		t.Fatalf("got %v, want refreshed value 2", data)
	}
}

func TestRefreshKeepsValueOnError(t *testing.T) {
	c := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := NewKey(OpStories)
	fail := false
	fetch := func(ctx context.Context) (any, error) {
		if fail {
			return nil, errors.New("db down")
		}
		return "good", nil
	}

	_, _ = c.Get(context.Background(), key, fetch, WithRefresh(time.Second))

	fail = true
	now = now.Add(2 * time.Second)
	c.refreshStale(context.Background())

	data, err := c.Get(context.Background(), key, fetch)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if data != "good" {
		t.Errorf("failed refresh must keep the previous value, got %v", data)
	}
}

// Reads and background refreshes of the same entry must not race:
// Get returns the value captured under the cache lock while the
// refresher rewrites it.
func TestConcurrentGetAndRefresh(t *testing.T) {
	c := New()
	key := NewKey(OpStories)

	version := 0
	fetch := func(ctx context.Context) (any, error) {
		version++
		return version, nil
	}

	_, err := c.Get(context.Background(), key, fetch, WithRefresh(time.Nanosecond))
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				data, err := c.Get(context.Background(), key, fetch)
				if err != nil {
					t.Errorf("get: %v", err)
					return
				}
				if data == nil {
					t.Error("get returned nil for a cached entry")
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		c.refreshStale(context.Background())
	}

	close(stop)
	wg.Wait()
}

// A fetch that started before a mutation committed must not install
// its result over the invalidation: a read issued after Mutate returns
// has to observe the post-mutation state.
func TestStaleFetchCannotOvertakeMutation(t *testing.T) {
	c := New()
	key := NewKey(OpStories)

	value := "before"
	started := make(chan struct{})
	release := make(chan struct{})

	slowFetch := func(ctx context.Context) (any, error) {
		v := value
		close(started)
		<-release
		return v, nil
	}

	firstRead := make(chan any, 1)
	go func() {
		data, _ := c.Get(context.Background(), key, slowFetch)
		firstRead <- data
	}()

	<-started
	_, err := c.Mutate(context.Background(), Mutation{
		Do: func(ctx context.Context) (any, error) {
			value = "after"
			return nil, nil
		},
		Invalidates: []Key{key},
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	close(release)

	if data := <-firstRead; data != "before" {
		t.Fatalf("pre-mutation read got %v, want the value it started with", data)
	}

	fresh := func(ctx context.Context) (any, error) { return value, nil }
	data, err := c.Get(context.Background(), key, fresh)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if data != "after" {
		t.Errorf("read after mutate got %v, want %v", data, "after")
	}
}

// Op-wide invalidation has to cover fetches still in flight, not just
// installed entries.
func TestInvalidateOpCoversInFlightFetch(t *testing.T) {
	c := New()
	key := NewKey(OpPosts, "cursor-a")

	value := "before"
	started := make(chan struct{})
	release := make(chan struct{})

	slowFetch := func(ctx context.Context) (any, error) {
		v := value
		close(started)
		<-release
		return v, nil
	}

	go func() { _, _ = c.Get(context.Background(), key, slowFetch) }()

	<-started
	value = "after"
	c.InvalidateOp(OpPosts)
	close(release)

	// Wait for the in-flight fetch to drain so its install attempt, if
	// any, has happened.
	deadline := time.Now().Add(2 * time.Second)
	for c.InFlight(key) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	fresh := func(ctx context.Context) (any, error) { return value, nil }
	data, err := c.Get(context.Background(), key, fresh)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if data != "after" {
		t.Errorf("got %v, want the post-invalidation value", data)
	}
}
