package handler

import (
	"context"
	"net/http"

	"github.com/snapgram/snapgram/internal/ctxkeys"
	"github.com/snapgram/snapgram/internal/querycache"
	"github.com/snapgram/snapgram/internal/service"
)

type CommentHandler struct {
	comments *service.CommentService
	cache    *querycache.Cache
}

func NewCommentHandler(comments *service.CommentService, cache *querycache.Cache) *CommentHandler {
	return &CommentHandler{comments: comments, cache: cache}
}

func (h *CommentHandler) ByPost(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("id")
	key := querycache.NewKey(querycache.OpComments, postID)

	data, err := h.cache.Get(r.Context(), key, func(ctx context.Context) (any, error) {
		return h.comments.ByPost(postID)
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	postID := r.PathValue("id")

	var body struct {
		Content string `json:"content"`
	}
	err := decodeJSON(r, &body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Content == "" {
		respondError(w, http.StatusBadRequest, "comment content is required")
		return
	}

	comment, err := h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return h.comments.Create(user.ID, postID, body.Content)
		},
		Invalidates: []querycache.Key{querycache.NewKey(querycache.OpComments, postID)},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, comment)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	commentID := r.PathValue("id")

	comment, err := h.comments.ByID(commentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if comment.UserID != user.ID {
		respondError(w, http.StatusForbidden, "not your comment")
		return
	}

	_, err = h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return nil, h.comments.Delete(commentID)
		},
		Invalidates: []querycache.Key{querycache.NewKey(querycache.OpComments, comment.PostID)},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
