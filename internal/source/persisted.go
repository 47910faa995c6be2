package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/gridkit/internal/grid"
	"github.com/JonMunkholm/gridkit/internal/storage"
)

const snapshotVersion = 1

// snapshot is the stored form of a persisted grid.
type snapshot struct {
	Version int        `json:"version"`
	SavedAt time.Time  `json:"savedAt"`
	Rows    []grid.Row `json:"rows"`
}

// Persisted is a Memory source whose rows are written to a blob store after
// every successful mutation. A failed write leaves the in-memory rows as
// they were.
type Persisted struct {
	*Memory
	store storage.Store
	key   string
}

// OpenPersisted loads the snapshot stored under key. When no snapshot exists
// the seed rows are used and written immediately.
func OpenPersisted(ctx context.Context, store storage.Store, key string, schema *grid.Schema, seed []grid.Row, opts ...MemoryOption) (*Persisted, error) {
	rows, err := loadSnapshot(ctx, store, key)
	fresh := errors.Is(err, storage.ErrNotFound)
	if err != nil && !fresh {
		return nil, err
	}
	if fresh {
		rows = seed
	}

	p := &Persisted{
		Memory: NewMemory(schema, rows, opts...),
		store:  store,
		key:    key,
	}
	p.Memory.commit = p.save

	if fresh {
		if err := p.save(ctx, p.Memory.rows); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Key returns the blob key the snapshot is stored under.
func (p *Persisted) Key() string { return p.key }

func (p *Persisted) save(ctx context.Context, rows []grid.Row) error {
	data, err := json.Marshal(snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Rows:    rows,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", p.key, err)
	}
	if err := p.store.Write(ctx, p.key, data); err != nil {
		return fmt.Errorf("save snapshot %s: %w", p.key, err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, store storage.Store, key string) ([]grid.Row, error) {
	data, err := store.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	if snap.Version > snapshotVersion {
		return nil, fmt.Errorf("snapshot %s: unsupported version %d", key, snap.Version)
	}
	return snap.Rows, nil
}
