package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: closed")
)

// Collection names a group of documents keyed by string id.
type Collection string

const (
	Users     Collection = "users"
	Giveaways Collection = "giveaways"
	Audit     Collection = "audit"
)

// Collections lists every collection included in backups.
var Collections = []Collection{Users, Giveaways, Audit}

// Store is the document API every driver implements.
type Store interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, coll Collection, key string) (json.RawMessage, error)
	Put(ctx context.Context, coll Collection, key string, doc json.RawMessage) error
	// Delete of a missing key is not an error.
	Delete(ctx context.Context, coll Collection, key string) error
	All(ctx context.Context, coll Collection) (map[string]json.RawMessage, error)
	Close() error
}

// Config selects and configures a driver.
//
//   - "file":   Path is a directory holding <collection>.json files
//   - "sqlite": Path is the database file
//   - "redis":  Addr/Password/DB, keys are "<Prefix>:<collection>" hashes
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration

	Addr     string
	Password string
	DB       int
	Prefix   string
}
