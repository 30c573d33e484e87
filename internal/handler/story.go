package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/snapgram/snapgram/internal/ctxkeys"
	"github.com/snapgram/snapgram/internal/querycache"
	"github.com/snapgram/snapgram/internal/service"
	"github.com/snapgram/snapgram/internal/validation"
)

type StoryHandler struct {
	stories         *service.StoryService
	cache           *querycache.Cache
	refreshInterval time.Duration
}

func NewStoryHandler(stories *service.StoryService, cache *querycache.Cache, refreshInterval time.Duration) *StoryHandler {
	return &StoryHandler{
		stories:         stories,
		cache:           cache,
		refreshInterval: refreshInterval,
	}
}

// Recent serves the story bar: active stories only, newest first. The
// cached list re-fetches on the refresh interval so stories that
// expire between user actions drop out of the feed on their own.
func (h *StoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	key := querycache.NewKey(querycache.OpStories)

	data, err := h.cache.Get(r.Context(), key, func(ctx context.Context) (any, error) {
		return h.stories.Recent()
	}, querycache.WithRefresh(h.refreshInterval))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

// ByUser serves a user's story grid, expired stories included.
func (h *StoryHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	key := querycache.NewKey(querycache.OpUserStories, userID)

	data, err := h.cache.Get(r.Context(), key, func(ctx context.Context) (any, error) {
		return h.stories.ByUser(userID)
	}, querycache.WithRefresh(h.refreshInterval))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "media file is required")
		return
	}
	defer func() { _ = file.Close() }()

	err = validation.ValidateFile(header, validation.MediaConstraints)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	caption := r.FormValue("caption")

	story, err := h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return h.stories.Create(user.ID, file, header.Filename, caption)
		},
		InvalidatesOps: []string{querycache.OpStories, querycache.OpUserStories},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, story)
}

// View marks the story as seen by the current user. Already-seen
// stories succeed without change.
func (h *StoryHandler) View(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	storyID := r.PathValue("id")

	story, err := h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return h.stories.MarkViewed(storyID, user.ID)
		},
		InvalidatesOps: []string{querycache.OpStories, querycache.OpUserStories},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, story)
}

func (h *StoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	storyID := r.PathValue("id")

	story, err := h.stories.ByID(storyID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if story.UserID != user.ID {
		respondError(w, http.StatusForbidden, "not your story")
		return
	}

	_, err = h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return nil, h.stories.Delete(story.ID, story.MediaID)
		},
		InvalidatesOps: []string{querycache.OpStories, querycache.OpUserStories},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
