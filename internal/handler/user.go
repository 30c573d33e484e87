package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/snapgram/snapgram/internal/ctxkeys"
	"github.com/snapgram/snapgram/internal/querycache"
	"github.com/snapgram/snapgram/internal/service"
	"github.com/snapgram/snapgram/internal/validation"
)

type UserHandler struct {
	users *service.UserService
	cache *querycache.Cache
}

func NewUserHandler(users *service.UserService, cache *querycache.Cache) *UserHandler {
	return &UserHandler{users: users, cache: cache}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	key := querycache.NewKey(querycache.OpCurrentUser, user.ID)

	data, err := h.cache.Get(r.Context(), key, func(ctx context.Context) (any, error) {
		return h.users.ByID(user.ID)
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

func (h *UserHandler) ByID(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	key := querycache.NewKey(querycache.OpUserByID, userID)

	data, err := h.cache.Get(r.Context(), key, func(ctx context.Context) (any, error) {
		return h.users.ByID(userID)
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	key := querycache.NewKey(querycache.OpUsers, cursor)

	data, err := h.cache.Get(r.Context(), key, func(ctx context.Context) (any, error) {
		users, next, err := h.users.Page(cursor)
		if err != nil {
			return nil, err
		}
		return map[string]any{"documents": users, "nextCursor": next}, nil
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	userID := r.PathValue("id")
	if userID != user.ID {
		respondError(w, http.StatusForbidden, "not your profile")
		return
	}

	err := r.ParseMultipartForm(16 << 20)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := r.FormValue("name")
	err = validation.ValidateName(name)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var avatar io.Reader
	filename := ""
	file, header, err := r.FormFile("file")
	if err == nil {
		defer func() { _ = file.Close() }()
		err = validation.ValidateFile(header, validation.AvatarConstraints)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		avatar = file
		filename = header.Filename
	}

	updated, err := h.cache.Mutate(r.Context(), querycache.Mutation{
		Do: func(ctx context.Context) (any, error) {
			return h.users.UpdateProfile(userID, name, r.FormValue("bio"), avatar, filename)
		},
		Invalidates: []querycache.Key{
			querycache.NewKey(querycache.OpCurrentUser, userID),
			querycache.NewKey(querycache.OpUserByID, userID),
		},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}
