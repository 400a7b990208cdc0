package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/minuta/internal/common"
	"github.com/ternarybob/minuta/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	summary interfaces.SummaryStorage
	kv      interfaces.KeyValueStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		summary: NewSummaryStorage(db, logger),
		kv:      NewKVStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// SummaryStorage returns the Summary storage interface
func (m *Manager) SummaryStorage() interfaces.SummaryStorage {
	return m.summary
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
