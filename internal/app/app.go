package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quillhq/quill/internal/clients/gemini"
	"github.com/quillhq/quill/internal/clients/github"
	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/services/auth"
	"github.com/quillhq/quill/internal/services/readme"
	"github.com/quillhq/quill/internal/services/webhook"
	"github.com/quillhq/quill/internal/storage"
)

// App holds all initialized services and clients.
// It is the shared core behind cmd/quill-server.
type App struct {
	Config         *common.Config
	Logger         *common.Logger
	Storage        interfaces.StorageManager
	GitHubClient   interfaces.GitHubClient
	GeminiClient   interfaces.GeminiClient
	AuthService    interfaces.AuthService
	WebhookService interfaces.WebhookService
	ReadmeService  interfaces.ReadmeService
	Gate           *auth.Gate
	StartupTime    time.Time

	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Get binary directory for self-contained operation
	binDir := getBinaryDir()

	// Load configuration - check provided path, QUILL_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("QUILL_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "quill.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/quill.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := common.NewLoggerFromConfig(config.Logging)

	// Initialize storage
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if !config.GitHubAppConfigured() {
		logger.Warn().Msg("GitHub App credentials not configured - installation tokens cannot be minted")
	}
	if !config.OAuthConfigured() {
		logger.Warn().Msg("GitHub OAuth client not configured - login will be unavailable")
	}

	// Initialize API clients
	githubClient := github.NewClient(config.GitHub, github.WithLogger(logger))

	var geminiClient interfaces.GeminiClient
	if config.Gemini.APIKey != "" {
		client, err := gemini.NewClient(context.Background(), config.Gemini.APIKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Gemini.Model),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client - README generation will be unavailable")
		} else {
			geminiClient = client
		}
	} else {
		logger.Warn().Msg("Gemini API key not configured - README generation will be unavailable")
	}

	// Initialize services
	issuer := auth.NewTokenIssuer(config.Auth.JWTSecret, config.Auth.GetTokenExpiry(), config.Auth.GetRefreshAgeLimit())
	authService := auth.NewService(storageManager, githubClient, issuer, logger)
	gate := auth.NewGate(authService, logger)
	webhookService := webhook.NewService(storageManager, config.GitHub.WebhookSecret, logger)
	readmeService := readme.NewService(authService, geminiClient, storageManager, logger)

	a := &App{
		Config:         config,
		Logger:         logger,
		Storage:        storageManager,
		GitHubClient:   githubClient,
		GeminiClient:   geminiClient,
		AuthService:    authService,
		WebhookService: webhookService,
		ReadmeService:  readmeService,
		Gate:           gate,
		StartupTime:    startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
// Shutdown order: cancel the session sweeper, close storage.
func (a *App) Close() error {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.Storage != nil {
		err := a.Storage.Close()
		a.Storage = nil
		return err
	}
	return nil
}

// StartSessionSweeper launches the background expired-session cleanup goroutine.
func (a *App) StartSessionSweeper() {
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	a.schedulerCancel = sweeperCancel
	go startSessionSweeper(sweeperCtx, a.Storage, a.Logger, sessionSweepInterval)
}
