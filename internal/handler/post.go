package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/snapgram/snapgram/internal/ctxkeys"
	"github.com/snapgram/snapgram/internal/querycache"
	"github.com/snapgram/snapgram/internal/service"
	"github.com/snapgram/snapgram/internal/validation"
)

type PostHandler struct {
	posts *service.PostService
	cache *querycache.Cache
}

func NewPostHandler(posts *service.PostService, cache *querycache.Cache) *PostHandler {
	return &PostHandler{posts: posts, cache: cache}
}

func (h *PostHandler) Recent(w http.ResponseWriter, r *http.Request) {
	key := querycache.NewKey(querycache.OpRecentPosts)

	data, err := h.cache.Get(r.Context(), key, func(ctx context.Context) (any, error) {
		return h.posts.Recent(20)
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

// List serves the infinite feed one cursor page at a time.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	key := querycache.NewKey(querycache.OpPosts, cursor)

	data, err := h.cache.Get(r.Context(), key, func(ctx context.Context) (any, error) {
		posts, next, err := h.posts.Page(cursor)
		if err != nil {
			return nil, err
		}
		return map[string]any{"documents": posts, "nextCursor": next}, nil
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

func (h *PostHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		respondError(w, http.StatusBadRequest, "search term is required")
		return
	}

	key := querycache.NewKey(querycache.OpSearchPosts, term)

	data, err := h.cache.Get(r.Context(), key, func(ctx context.Context) (any, error) {
		return h.posts.Search(term)
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

func (h *PostHandler) ByID(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("id")
	key := querycache.NewKey(querycache.OpPostByID, postID)

	data, err := h.cache.Get(r.Context(), key, func(ctx context.Context) (any, error) {
		return h.posts.ByID(postID)
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	file, header, ok := h.imageForm(w, r, true)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	caption := r.FormValue("caption")
	err := validation.ValidateCaption(caption)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return h.posts.Create(user.ID, file, header.Filename, caption, r.FormValue("location"), r.FormValue("tags"))
		},
		Invalidates: []querycache.Key{querycache.NewKey(querycache.OpRecentPosts)},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	postID := r.PathValue("id")

	existing, err := h.posts.ByID(postID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if existing.CreatorID != user.ID {
		respondError(w, http.StatusForbidden, "not your post")
		return
	}

	var image io.Reader
	filename := ""
	file, header, ok := h.imageForm(w, r, false)
	if !ok {
		return
	}
	if file != nil {
		defer func() { _ = file.Close() }()
		image = file
		filename = header.Filename
	}

	caption := r.FormValue("caption")
	err = validation.ValidateCaption(caption)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return h.posts.Update(postID, caption, r.FormValue("location"), r.FormValue("tags"), image, filename)
		},
		Invalidates: []querycache.Key{querycache.NewKey(querycache.OpPostByID, postID)},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	postID := r.PathValue("id")

	post, err := h.posts.ByID(postID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if post.CreatorID != user.ID {
		respondError(w, http.StatusForbidden, "not your post")
		return
	}

	_, err = h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return nil, h.posts.Delete(post.ID, post.ImageID)
		},
		Invalidates: []querycache.Key{
			querycache.NewKey(querycache.OpRecentPosts),
			querycache.NewKey(querycache.OpPostByID, postID),
		},
		InvalidatesOps: []string{querycache.OpPosts},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Like replaces the post's like set with the client's array, matching
// the client contract of sending the whole likes list.
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("id")

	var body struct {
		Likes []string `json:"likes"`
	}
	err := decodeJSON(r, &body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	post, err := h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return h.posts.Like(postID, body.Likes)
		},
		Invalidates: []querycache.Key{
			querycache.NewKey(querycache.OpPostByID, postID),
			querycache.NewKey(querycache.OpRecentPosts),
		},
		InvalidatesOps: []string{querycache.OpPosts},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Save(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	postID := r.PathValue("id")

	save, err := h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return h.posts.Save(user.ID, postID)
		},
		Invalidates: []querycache.Key{querycache.NewKey(querycache.OpRecentPosts)},
		InvalidatesOps: []string{querycache.OpPosts},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, save)
}

func (h *PostHandler) Unsave(w http.ResponseWriter, r *http.Request) {
	saveID := r.PathValue("id")

	_, err := h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return nil, h.posts.Unsave(saveID)
		},
		Invalidates: []querycache.Key{querycache.NewKey(querycache.OpRecentPosts)},
		InvalidatesOps: []string{querycache.OpPosts},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PostHandler) Saved(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	saves, err := h.posts.SavedByUser(user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, saves)
}

// imageForm parses the multipart form and validates an optional image
// field. With required true a missing file is a client error. Returns
// ok=false after writing the error response.
func (h *PostHandler) imageForm(w http.ResponseWriter, r *http.Request, required bool) (multipart.File, *multipart.FileHeader, bool) {
	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if required {
			respondError(w, http.StatusBadRequest, "image file is required")
			return nil, nil, false
		}
		return nil, nil, true
	}

	err = validation.ValidateFile(header, validation.MediaConstraints)
	if err != nil {
		_ = file.Close()
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, nil, false
	}

	return file, header, true
}
