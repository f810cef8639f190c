// Package storage provides the persistence layer for Dockhand using CouchDB.
// It wraps the eve.evalgo.org/db library with type-safe operations for host
// and stack records and translates CouchDB failures into the shared error
// taxonomy.
package storage

import (
	"fmt"
	"log"

	"eve.evalgo.org/db"

	"evalgo.org/dockhand/internal/config"
)

// Storage provides persistence for Dockhand entities. It wraps the CouchDB
// service from the eve library.
type Storage struct {
	service *db.CouchDBService
	config  *config.Config
}

// debugLog logs a message only if debug mode is enabled in config
func (s *Storage) debugLog(format string, args ...interface{}) {
	if s.config.Server.Debug {
		log.Printf(format, args...)
	}
}

// New creates a new Storage instance from the application configuration.
// It initializes the CouchDB connection and ensures the database exists.
func New(cfg *config.Config) (*Storage, error) {
	couchConfig := db.CouchDBConfig{
		URL:             cfg.CouchDB.URL,
		Database:        cfg.CouchDB.Database,
		Username:        cfg.CouchDB.Username,
		Password:        cfg.CouchDB.Password,
		CreateIfMissing: true,
	}

	service, err := db.NewCouchDBServiceFromConfig(couchConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create CouchDB service: %w", err)
	}

	storage := &Storage{
		service: service,
		config:  cfg,
	}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return storage, nil
}

// initializeSchema creates the indexes backing the common queries.
func (s *Storage) initializeSchema() error {
	indexes := []db.Index{
		{
			Name:   "hosts-name",
			Fields: []string{"kind", "name"},
			Type:   "json",
		},
		{
			Name:   "hosts-transport",
			Fields: []string{"kind", "transport"},
			Type:   "json",
		},
		{
			Name:   "stacks-host-project",
			Fields: []string{"kind", "hostId", "project"},
			Type:   "json",
		},
		{
			Name:   "stacks-state",
			Fields: []string{"kind", "state"},
			Type:   "json",
		},
	}

	for _, index := range indexes {
		if err := s.service.CreateIndex(index); err != nil {
			// Index might already exist, keep going.
			s.debugLog("DEBUG: failed to create index %s: %v", index.Name, err)
		}
	}

	return nil
}

// Close closes the storage connection.
func (s *Storage) Close() error {
	return s.service.Close()
}

// notFound reports whether the error is a CouchDB missing-document error.
func notFound(err error) bool {
	if couchErr, ok := err.(*db.CouchDBError); ok {
		return couchErr.IsNotFound()
	}
	return false
}

// conflict reports whether the error is a CouchDB revision conflict.
func conflict(err error) bool {
	if couchErr, ok := err.(*db.CouchDBError); ok {
		return couchErr.IsConflict()
	}
	return false
}
