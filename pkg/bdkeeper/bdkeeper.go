// Package bdkeeper persists the client's local state in SQLite. Its main job
// is the durable pending-mutation queue: the whole queue is stored as one
// serialized JSON array under a single state key, and every save replaces the
// previous snapshot in a transaction.
//
// The keeper assumes a single process owns the database file. Two clients
// racing read-modify-write passes over the same file can lose requeued items;
// running multiple instances against one database is unsupported.
package bdkeeper

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose"
	"github.com/warestage/loadsheet-client/pkg/models"
)

const queueStateKey = "pending_queue"

// Codec optionally transforms state values on their way to and from disk.
// The encription package provides the production implementation.
type Codec interface {
	Seal(plain []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

type Keeper struct {
	db    *sql.DB
	codec Codec
}

// New opens (or creates) the database file and applies goose migrations from
// the given directory. codec may be nil, in which case values are stored as
// plain JSON.
func New(databaseFile, migrationsDir string, codec Codec) (*Keeper, error) {
	db, err := sql.Open("sqlite3", databaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, err
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Keeper{db: db, codec: codec}, nil
}

// NewWithDB wraps an already opened database. The caller is responsible for
// the schema. Used by tests.
func NewWithDB(db *sql.DB, codec Codec) *Keeper {
	return &Keeper{db: db, codec: codec}
}

func (k *Keeper) Close() error {
	return k.db.Close()
}

// LoadQueue returns the pending mutations in enqueue order. A missing state
// row yields a nil slice, not an error.
func (k *Keeper) LoadQueue(ctx context.Context) ([]models.QueuedMutation, error) {
	value, err := k.GetState(ctx, queueStateKey)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	var queue []models.QueuedMutation
	if err := json.Unmarshal(value, &queue); err != nil {
		return nil, fmt.Errorf("failed to decode queue: %w", err)
	}
	return queue, nil
}

// SaveQueue replaces the stored queue snapshot with the given one.
func (k *Keeper) SaveQueue(ctx context.Context, queue []models.QueuedMutation) error {
	if queue == nil {
		queue = []models.QueuedMutation{}
	}
	value, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	return k.PutState(ctx, queueStateKey, value)
}

// GetState reads a single state value. Returns nil when the key is absent.
func (k *Keeper) GetState(ctx context.Context, name string) ([]byte, error) {
	row := k.db.QueryRowContext(ctx, "SELECT value FROM sync_state WHERE name = ?", name)

	var value []byte
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state %q: %w", name, err)
	}

	if k.codec != nil {
		opened, err := k.codec.Open(value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode state %q: %w", name, err)
		}
		value = opened
	}
	return value, nil
}

// PutState upserts a single state value inside a transaction, so a reader
// never observes a partially written snapshot.
func (k *Keeper) PutState(ctx context.Context, name string, value []byte) error {
	if k.codec != nil {
		sealed, err := k.codec.Seal(value)
		if err != nil {
			return fmt.Errorf("failed to encode state %q: %w", name, err)
		}
		value = sealed
	}

	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sync_state(name, value) VALUES(?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to write state %q: %w", name, err)
	}
	return tx.Commit()
}
