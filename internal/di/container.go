// Package di provides the dependency injection container that wires the exam
// generation services together and manages their lifecycle.
package di

import (
	"context"
	"database/sql"
	"sync"

	"examgen/internal/config"
	"examgen/internal/database"
	"examgen/internal/observability"
	"examgen/internal/services"
	contextutils "examgen/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetGenerationService() (*services.GenerationService, error)
	GetExamService() (*services.ExamService, error)
	GetAIClient() (services.AIClient, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDB(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize services")
	}

	return nil
}

// initializeServices builds the pipeline services. Caller must hold the lock.
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	examService := services.NewExamService(sc.db, sc.logger)
	sc.services["exam"] = examService

	aiClient := services.NewGatewayClient(sc.cfg, sc.logger)
	sc.services["ai"] = aiClient
	sc.shutdownFuncs = append(sc.shutdownFuncs, aiClient.Shutdown)

	// Collaborator services are optional deployments; the pipeline degrades
	// gracefully when they are absent.
	var diagrams services.DiagramClient
	if sc.cfg.Diagram.URL != "" {
		diagrams = services.NewHTTPDiagramClient(sc.cfg.Diagram, sc.logger)
	} else {
		sc.logger.Warn(ctx, "Diagram service not configured, image generation disabled", nil)
	}

	var extractor services.DocumentExtractor
	if sc.cfg.Extractor.URL != "" {
		extractor = services.NewHTTPDocumentExtractor(sc.cfg.Extractor, sc.cfg.Generation.MaxDocumentBytes, sc.logger)
	} else {
		sc.logger.Warn(ctx, "Document extractor not configured, uploads will fall back to descriptions", nil)
	}

	generationService, err := services.NewGenerationService(sc.cfg, sc.logger, aiClient, diagrams, extractor, examService, nil)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to create generation service")
	}
	sc.services["generation"] = generationService

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetGenerationService returns the exam generation pipeline
func (sc *ServiceContainer) GetGenerationService() (*services.GenerationService, error) {
	return GetServiceAs[*services.GenerationService](sc, "generation")
}

// GetExamService returns the exam persistence service
func (sc *ServiceContainer) GetExamService() (*services.ExamService, error) {
	return GetServiceAs[*services.ExamService](sc, "exam")
}

// GetAIClient returns the AI gateway client
func (sc *ServiceContainer) GetAIClient() (services.AIClient, error) {
	return GetServiceAs[services.AIClient](sc, "ai")
}

// GetDatabase returns the underlying database handle
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.db
}

// GetConfig returns the application configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the shared logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown releases all resources held by the container
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.cleanup(ctx)
}

// cleanup runs shutdown functions in reverse registration order. Caller must
// hold the lock.
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var firstErr error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	sc.shutdownFuncs = nil
	sc.services = make(map[string]interface{})
	return firstErr
}
