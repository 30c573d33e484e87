package querycache

import (
	"strings"
)

// Key identifies a cached query by operation name plus parameters,
// e.g. {"stories", ""} for the recent-stories list or
// {"stories", "user-123"} for one user's stories. Invalidation targets
// either an exact key or every key under an operation.
type Key struct {
	Op     string
	Params string
}

func NewKey(op string, params ...string) Key {
	return Key{Op: op, Params: strings.Join(params, "/")}
}

func (k Key) String() string {
	if k.Params == "" {
		return k.Op
	}
	return k.Op + "/" + k.Params
}

// Query key operations shared by services and handlers.
const (
	OpStories     = "stories"
	OpUserStories = "userStories"
	OpRecentPosts = "recentPosts"
	OpPosts       = "posts"
	OpPostByID    = "postById"
	OpSearchPosts = "searchPosts"
	OpComments    = "comments"
	OpUsers       = "users"
	OpUserByID    = "userById"
	OpCurrentUser = "currentUser"
)
