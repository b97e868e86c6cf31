package handle

import (
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/google/uuid"

	"github.com/marmos91/dittocheck/internal/fserr"
	"github.com/marmos91/dittocheck/internal/logger"
)

const memoryTableDegree = 32

// entryItem orders entries by handle bytes inside the btree.
type entryItem struct {
	entry Entry
}

func (a entryItem) Less(than btree.Item) bool {
	return string(a.entry.Handle) < string(than.(entryItem).entry.Handle)
}

// MemoryTable is an in-memory handle table. Entries are kept in a btree so
// List returns them in handle order without sorting.
//
// Thread Safety:
// All operations are protected by a single read-write mutex.
type MemoryTable struct {
	mu     sync.RWMutex
	byID   *btree.BTree
	byPath map[string]FileHandle
}

// NewMemoryTable creates an empty table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{
		byID:   btree.New(memoryTableDegree),
		byPath: make(map[string]FileHandle),
	}
}

func (t *MemoryTable) Register(ctx context.Context, share, path string) (FileHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fserr.NewError(fserr.InvalidArg, "cannot register empty path")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.byPath[path]; ok {
		return existing, nil
	}

	h, err := EncodeShareHandle(share, uuid.New())
	if err != nil {
		return nil, err
	}

	t.byID.ReplaceOrInsert(entryItem{entry: Entry{Handle: h, Share: share, Path: path}})
	t.byPath[path] = h
	logger.WithPath(path).Debug("Registered handle %s", h)
	return h, nil
}

func (t *MemoryTable) Lookup(ctx context.Context, h FileHandle) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	item := t.byID.Get(entryItem{entry: Entry{Handle: h}})
	if item == nil {
		return Entry{}, fserr.NewError(fserr.StaleHandle, "unknown file handle %q", h)
	}
	return item.(entryItem).entry, nil
}

func (t *MemoryTable) Forget(ctx context.Context, h FileHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	item := t.byID.Delete(entryItem{entry: Entry{Handle: h}})
	if item == nil {
		return fserr.NewError(fserr.StaleHandle, "unknown file handle %q", h)
	}
	delete(t.byPath, item.(entryItem).entry.Path)
	return nil
}

func (t *MemoryTable) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := make([]Entry, 0, t.byID.Len())
	t.byID.Ascend(func(i btree.Item) bool {
		entries = append(entries, i.(entryItem).entry)
		return true
	})
	return entries, nil
}

// TranslateHandleToPath implements Translator.
func (t *MemoryTable) TranslateHandleToPath(h FileHandle) string {
	entry, err := t.Lookup(context.Background(), h)
	if err != nil {
		logger.Debug("Handle translation failed: %v", err)
		return ""
	}
	return entry.Path
}

func (t *MemoryTable) Close() error {
	return nil
}
