// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aulanotes/AulaNotes/internal/api"
	"github.com/aulanotes/AulaNotes/internal/config"
	"github.com/aulanotes/AulaNotes/internal/di"
	"github.com/aulanotes/AulaNotes/internal/services"
	"github.com/aulanotes/AulaNotes/internal/storage"
	"github.com/aulanotes/AulaNotes/internal/utils"
)

// App is the application singleton. It owns service construction,
// the HTTP server lifecycle and shutdown.
type App struct {
	server   *http.Server
	stopChan chan struct{}
}

var instance *App

// GetApp returns the application singleton
func GetApp() *App {
	if instance == nil {
		instance = &App{
			stopChan: make(chan struct{}),
		}
	}
	return instance
}

// Initialize loads configuration, sets up logging and builds all services
func (a *App) Initialize() error {
	baseConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	if err := a.initLogger(baseConfig.LogDir); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := a.InitServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	return nil
}

// initLogger points the global logger at the configured log directory
func (a *App) initLogger(logDir string) error {
	logFile := filepath.Join(logDir, "aulanotes.log")
	if err := utils.InitLogger(logFile); err != nil {
		return err
	}

	if a.IsDebugMode() {
		utils.GetLogger().SetLogLevel(utils.DEBUG)
	}

	return nil
}

// InitServices builds the service graph and registers it in the DI
// container. Construction order follows the dependency order.
func (a *App) InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize file storage: %w", err)
	}
	container.Register("storage", fileStorage)

	documentStore := storage.NewDocumentStore(fileStorage)
	container.Register("document_store", documentStore)

	llmService, err := services.NewLLMService()
	if err != nil {
		// a missing provider key degrades structuring but the app still runs
		utils.GetLogger().Warn("LLM service starting degraded", map[string]interface{}{
			"error": err.Error(),
		})
		llmService = services.NewEmptyLLMService()
	}
	container.Register("llm", llmService)

	validateService := services.NewValidateService()
	container.Register("validate", validateService)

	alignService := services.NewAlignService()
	container.Register("align", alignService)

	mutationService := services.NewMutationService(validateService)
	container.Register("mutation", mutationService)

	structureService := services.NewStructureService(llmService, validateService)
	container.Register("structure", structureService)

	progressService := services.NewProgressService()
	container.Register("progress", progressService)

	documentService := services.NewDocumentService(
		structureService,
		alignService,
		validateService,
		mutationService,
		documentStore,
		progressService,
	)
	container.Register("document", documentService)

	return nil
}

// Run starts the HTTP server and blocks until shutdown
func (a *App) Run() error {
	if err := a.Initialize(); err != nil {
		return err
	}

	router, err := api.SetupRouter()
	if err != nil {
		return fmt.Errorf("failed to set up router: %w", err)
	}

	cfg := config.GetCurrentConfig()
	a.server = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("server listening on :%s", cfg.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Printf("received signal %v, shutting down", sig)
	case <-a.stopChan:
		log.Println("stop requested, shutting down")
	}

	return a.Shutdown()
}

// Shutdown stops the HTTP server and cleans up services
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	a.Cleanup()
	return nil
}

// Stop signals a running Run loop to shut down
func (a *App) Stop() {
	select {
	case <-a.stopChan:
	default:
		close(a.stopChan)
	}
}

// Cleanup releases background resources
func (a *App) Cleanup() {
	container := di.GetContainer()

	if progressService, ok := container.Get("progress").(*services.ProgressService); ok && progressService != nil {
		progressService.CleanupCompletedTasks(0)
	}
}

// GetConfig returns the current application configuration
func (a *App) GetConfig() *config.AppConfig {
	return config.GetCurrentConfig()
}

// GetDIContainer returns the dependency injection container
func (a *App) GetDIContainer() *di.Container {
	return di.GetContainer()
}

// IsDebugMode reports whether debug mode is enabled
func (a *App) IsDebugMode() bool {
	return config.GetCurrentConfig().DebugMode
}
