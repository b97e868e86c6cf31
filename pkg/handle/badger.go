package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/marmos91/dittocheck/internal/fserr"
	"github.com/marmos91/dittocheck/internal/logger"
)

// Database Key Namespace Design
// ==============================
//
// Data Type        Prefix   Key Format          Value
// =====================================================================
// Handle entries   "h:"     h:<handle bytes>    Entry (JSON)
// Path index       "p:"     p:<path>            handle bytes
//
// The path index makes Register idempotent per path without a scan.
const (
	prefixHandle = "h:"
	prefixPath   = "p:"
)

func keyHandle(h FileHandle) []byte {
	return append([]byte(prefixHandle), h...)
}

func keyPath(path string) []byte {
	return []byte(prefixPath + path)
}

// BadgerTableConfig configures a BadgerDB-backed handle table.
type BadgerTableConfig struct {
	// Path is the directory where BadgerDB keeps its files.
	Path string `mapstructure:"path"`

	// InMemory keeps everything in memory (tests, ephemeral servers).
	InMemory bool `mapstructure:"in_memory"`
}

// BadgerTable persists handle mappings in BadgerDB so that handles given to
// clients survive server restarts.
//
// Thread Safety:
// BadgerDB transactions provide isolation; no extra locking is needed.
type BadgerTable struct {
	db *badger.DB
}

// NewBadgerTable opens (or creates) a handle table.
//
// Parameters:
//   - cfg: Database directory, or in-memory mode for tests
//
// Returns:
//   - *BadgerTable: Open table; the caller must Close it
//   - error: If the path is missing or the database cannot be opened
func NewBadgerTable(cfg BadgerTableConfig) (*BadgerTable, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger handle table: path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger handle table: %w", err)
	}

	return &BadgerTable{db: db}, nil
}

func (t *BadgerTable) Register(ctx context.Context, share, path string) (FileHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fserr.NewError(fserr.InvalidArg, "cannot register empty path")
	}

	var result FileHandle
	err := t.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyPath(path))
		if err == nil {
			result, err = item.ValueCopy(nil)
			return err
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		h, err := EncodeShareHandle(share, uuid.New())
		if err != nil {
			return err
		}

		data, err := json.Marshal(Entry{Handle: h, Share: share, Path: path})
		if err != nil {
			return fmt.Errorf("failed to encode handle entry: %w", err)
		}
		if err := txn.Set(keyHandle(h), data); err != nil {
			return err
		}
		if err := txn.Set(keyPath(path), h); err != nil {
			return err
		}

		result = h
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register handle for %s: %w", path, err)
	}

	logger.WithPath(path).Debug("Registered handle %s", result)
	return result, nil
}

func (t *BadgerTable) Lookup(ctx context.Context, h FileHandle) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	var entry Entry
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyHandle(h))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, fserr.NewError(fserr.StaleHandle, "unknown file handle %q", h)
	}
	if err != nil {
		return Entry{}, fserr.AddError(fmt.Errorf("failed to look up handle: %w", err), fserr.IOError)
	}
	return entry, nil
}

func (t *BadgerTable) Forget(ctx context.Context, h FileHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := t.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyHandle(h))
		if err != nil {
			return err
		}

		var entry Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return err
		}

		if err := txn.Delete(keyHandle(h)); err != nil {
			return err
		}
		return txn.Delete(keyPath(entry.Path))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fserr.NewError(fserr.StaleHandle, "unknown file handle %q", h)
	}
	return err
}

func (t *BadgerTable) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := t.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixHandle)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list handles: %w", err)
	}
	return entries, nil
}

// TranslateHandleToPath implements Translator.
func (t *BadgerTable) TranslateHandleToPath(h FileHandle) string {
	entry, err := t.Lookup(context.Background(), h)
	if err != nil {
		logger.Debug("Handle translation failed: %v", err)
		return ""
	}
	return entry.Path
}

func (t *BadgerTable) Close() error {
	return t.db.Close()
}
