package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/snapgram/snapgram/internal/config"
	"github.com/snapgram/snapgram/internal/db"
	"github.com/snapgram/snapgram/internal/querycache"
	"github.com/snapgram/snapgram/internal/repository"
	"github.com/snapgram/snapgram/internal/service"
	"github.com/snapgram/snapgram/internal/storage"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB
	Cache          *querycache.Cache
	AuthService    *service.AuthService
	UserService    *service.UserService
	StoryService   *service.StoryService
	PostService    *service.PostService
	CommentService *service.CommentService
	Janitor        *service.Janitor
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	postRepository := repository.NewPostRepository(database)
	saveRepository := repository.NewSaveRepository(database)
	commentRepository := repository.NewCommentRepository(database)
	storyRepository := repository.NewStoryRepository(database)

	// Storage
	blobStorage, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Services
	authService := service.NewAuthService(userRepository, cfg.JWTSecret, cfg.JWTExpiry, cfg.IsProduction())
	userService := service.NewUserService(userRepository, blobStorage, cfg.UserPageSize)
	storyService := service.NewStoryService(storyRepository, blobStorage, cfg.StoryTTL)
	postService := service.NewPostService(postRepository, saveRepository, blobStorage, cfg.PostPageSize)
	commentService := service.NewCommentService(commentRepository)
	janitor := service.NewJanitor(storyRepository, blobStorage, cfg.StoryRetention)

	return &App{
		Cfg:            cfg,
		DB:             database,
		Cache:          querycache.New(),
		AuthService:    authService,
		UserService:    userService,
		StoryService:   storyService,
		PostService:    postService,
		CommentService: commentService,
		Janitor:        janitor,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
