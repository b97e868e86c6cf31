// Package handle models the opaque file handles NFS clients hold and the
// translation table that maps them back to filesystem paths.
//
// A handle is never interpreted by the verifier: its only semantic operation
// is resolution through a Translator. An empty resolution means the handle is
// stale or unknown.
package handle

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/marmos91/dittocheck/internal/fserr"
)

// MaxHandleSize is the NFSv3 limit on opaque file handle length (RFC 1813).
const MaxHandleSize = 64

// FileHandle is an opaque client-held reference to a filesystem object.
type FileHandle []byte

func (h FileHandle) String() string {
	return string(h)
}

// Translator resolves handles to paths. An empty string means unresolvable.
type Translator interface {
	TranslateHandleToPath(handle FileHandle) string
}

// TranslatorFunc adapts a plain function to the Translator interface.
type TranslatorFunc func(handle FileHandle) string

func (f TranslatorFunc) TranslateHandleToPath(handle FileHandle) string {
	return f(handle)
}

// Entry is one row of a handle table.
type Entry struct {
	Handle FileHandle `json:"handle"`
	Share  string     `json:"share"`
	Path   string     `json:"path"`
}

// Table is a persistent or in-memory handle to path mapping.
//
// Register is idempotent per path: registering a path already present
// returns the existing handle.
type Table interface {
	Translator

	Register(ctx context.Context, share, path string) (FileHandle, error)
	Lookup(ctx context.Context, handle FileHandle) (Entry, error)
	Forget(ctx context.Context, handle FileHandle) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// ============================================================================
// Share-Aware Handle Encoding/Decoding
// ============================================================================

// EncodeShareHandle encodes a share name and a file ID into a FileHandle.
//
// Format: "<shareName>:<uuid>"
// Example: "/export:550e8400-e29b-41d4-a716-446655440000"
//
// Returns an error when the encoded handle would exceed MaxHandleSize.
func EncodeShareHandle(shareName string, id uuid.UUID) (FileHandle, error) {
	if shareName == "" {
		return nil, fserr.NewError(fserr.InvalidArg, "invalid share name: empty")
	}

	encoded := shareName + ":" + id.String()
	if len(encoded) > MaxHandleSize {
		return nil, fserr.NewError(fserr.NameTooLong,
			"file handle too long: %d bytes (max %d)", len(encoded), MaxHandleSize)
	}
	return FileHandle(encoded), nil
}

// DecodeShareHandle splits a FileHandle into its share name and file ID.
//
// The share name may itself contain colons, so the split happens on the last
// separator.
func DecodeShareHandle(handle FileHandle) (shareName string, id uuid.UUID, err error) {
	handleStr := string(handle)

	idx := strings.LastIndex(handleStr, ":")
	if idx == -1 {
		return "", uuid.Nil, fserr.NewError(fserr.InvalidArg, "invalid file handle format: missing ':' separator")
	}

	shareName = handleStr[:idx]
	if shareName == "" {
		return "", uuid.Nil, fserr.NewError(fserr.InvalidArg, "invalid file handle: empty share name")
	}

	id, err = uuid.Parse(handleStr[idx+1:])
	if err != nil {
		return "", uuid.Nil, fserr.AddError(fmt.Errorf("invalid file handle id: %w", err), fserr.InvalidArg)
	}

	return shareName, id, nil
}
