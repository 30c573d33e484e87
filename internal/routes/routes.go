package routes

import (
	"net/http"

	"github.com/rs/cors"
	"github.com/snapgram/snapgram/internal/app"
	"github.com/snapgram/snapgram/internal/handler"
	"github.com/snapgram/snapgram/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService)
	users := handler.NewUserHandler(app.UserService, app.Cache)
	stories := handler.NewStoryHandler(app.StoryService, app.Cache, app.Cfg.StoryRefreshInterval)
	posts := handler.NewPostHandler(app.PostService, app.Cache)
	comments := handler.NewCommentHandler(app.CommentService, app.Cache)

	mux := http.NewServeMux()

	// Auth (rate limited)
	rateLimiter := middleware.RateLimitAuth()
	mux.HandleFunc("POST /api/auth/signup", rateLimiter(auth.Signup))
	mux.HandleFunc("POST /api/auth/login", rateLimiter(auth.Login))
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)

	// Users
	mux.HandleFunc("GET /api/users/me", middleware.RequireAuth(users.Me))
	mux.HandleFunc("GET /api/users", middleware.RequireAuth(users.List))
	mux.HandleFunc("GET /api/users/{id}", middleware.RequireAuth(users.ByID))
	mux.HandleFunc("PUT /api/users/{id}", middleware.RequireAuth(users.Update))

	// Stories
	mux.HandleFunc("GET /api/stories", middleware.RequireAuth(stories.Recent))
	mux.HandleFunc("GET /api/users/{id}/stories", middleware.RequireAuth(stories.ByUser))
	mux.HandleFunc("POST /api/stories", middleware.RequireAuth(stories.Create))
	mux.HandleFunc("POST /api/stories/{id}/view", middleware.RequireAuth(stories.View))
	mux.HandleFunc("DELETE /api/stories/{id}", middleware.RequireAuth(stories.Delete))

	// Posts
	mux.HandleFunc("GET /api/posts/recent", middleware.RequireAuth(posts.Recent))
	mux.HandleFunc("GET /api/posts", middleware.RequireAuth(posts.List))
	mux.HandleFunc("GET /api/posts/search", middleware.RequireAuth(posts.Search))
	mux.HandleFunc("GET /api/posts/{id}", middleware.RequireAuth(posts.ByID))
	mux.HandleFunc("POST /api/posts", middleware.RequireAuth(posts.Create))
	mux.HandleFunc("PUT /api/posts/{id}", middleware.RequireAuth(posts.Update))
	mux.HandleFunc("DELETE /api/posts/{id}", middleware.RequireAuth(posts.Delete))
	mux.HandleFunc("PUT /api/posts/{id}/likes", middleware.RequireAuth(posts.Like))

	// Saves
	mux.HandleFunc("GET /api/saves", middleware.RequireAuth(posts.Saved))
	mux.HandleFunc("POST /api/posts/{id}/save", middleware.RequireAuth(posts.Save))
	mux.HandleFunc("DELETE /api/saves/{id}", middleware.RequireAuth(posts.Unsave))

	// Comments
	mux.HandleFunc("GET /api/posts/{id}/comments", middleware.RequireAuth(comments.ByPost))
	mux.HandleFunc("POST /api/posts/{id}/comments", middleware.RequireAuth(comments.Create))
	mux.HandleFunc("DELETE /api/comments/{id}", middleware.RequireAuth(comments.Delete))

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   app.Cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		corsMiddleware.Handler,
		middleware.RequestLogging,
		middleware.AuthMiddleware(app.AuthService, app.UserService),
	)
}
