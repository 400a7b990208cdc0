// -----------------------------------------------------------------------
// Application wiring - config, storage and services for the CLI
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/minuta/internal/common"
	"github.com/ternarybob/minuta/internal/interfaces"
	"github.com/ternarybob/minuta/internal/services/batch"
	"github.com/ternarybob/minuta/internal/services/pipeline"
	"github.com/ternarybob/minuta/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	BatchService    interfaces.BatchService
	PipelineService interfaces.PipelineService
}

// New creates the application: opens storage, resolves the API key and
// wires the batch client and pipeline orchestrator.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	batchService, err := batch.NewAnthropicService(&config.Claude, storageManager.KeyValueStorage(), logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize batch client: %w", err)
	}

	pipelineService := pipeline.NewService(
		batchService,
		storageManager.SummaryStorage(),
		config.Summarize.TemplatesDir,
		logger,
	)

	return &App{
		Config:          config,
		Logger:          logger,
		StorageManager:  storageManager,
		BatchService:    batchService,
		PipelineService: pipelineService,
	}, nil
}

// NewWithoutBatch creates the application with storage only, for commands
// that inspect or edit local state and never touch the remote API.
func NewWithoutBatch(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &App{
		Config:         config,
		Logger:         logger,
		StorageManager: storageManager,
	}, nil
}

// Close releases application resources
func (a *App) Close() error {
	if a.StorageManager != nil {
		return a.StorageManager.Close()
	}
	return nil
}

// SummaryStorage is a convenience accessor for the summary state store.
func (a *App) SummaryStorage() interfaces.SummaryStorage {
	return a.StorageManager.SummaryStorage()
}

// ResolveAPIKey resolves the Anthropic API key the same way the batch
// client does, surfacing configuration problems before submission.
func (a *App) ResolveAPIKey(ctx context.Context) (string, error) {
	return common.ResolveAPIKey(ctx, a.StorageManager.KeyValueStorage(), "anthropic_api_key", a.Config.Claude.APIKey)
}
