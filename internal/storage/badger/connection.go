package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/minuta/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// Interval between value log garbage collection passes.
const gcInterval = 5 * time.Minute

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
	stopGC chan struct{}
}

// NewBadgerDB creates a new Badger database connection
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	// If reset_on_startup is enabled, delete the existing database
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	// Ensure the directory exists
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Opening Badger database connection")

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")

	db := &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
		stopGC: make(chan struct{}),
	}
	common.SafeGo(logger, "badger-gc", func() { db.runGC() })

	return db, nil
}

// runGC reclaims value log space on a fixed interval until Close.
func (b *BadgerDB) runGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopGC:
			return
		case <-ticker.C:
			// Repeat until there is nothing left to rewrite
			for {
				err := b.store.Badger().RunValueLogGC(0.5)
				if err == badgerdb.ErrNoRewrite {
					break
				}
				if err != nil {
					b.logger.Warn().Err(err).Msg("Badger value log GC failed")
					break
				}
			}
		}
	}
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close stops background maintenance and closes the database connection
func (b *BadgerDB) Close() error {
	if b.stopGC != nil {
		close(b.stopGC)
		b.stopGC = nil
	}
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
