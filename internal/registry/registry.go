// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package registry persists the set of Telegram chats subscribed to the
// digest.
//
// The registry is a JSON array of strings on disk. Every operation reads the
// file afresh, and mutations hold an advisory lock on "<path>.lock" for the
// whole read-modify-write, so the pipeline and the command listener can share
// one file.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/greekangels/cryptodigest/internal/atomicio"
	"github.com/greekangels/cryptodigest/internal/filelock"
)

// ID identifies a Telegram destination: a numeric chat ID in decimal form or
// a public "@channel" name.
type ID string

// ErrEmptyID is returned when an ID is blank after normalization.
var ErrEmptyID = errors.New("empty destination ID")

// Normalize returns the canonical form of s.
func Normalize(s string) ID { return ID(strings.TrimSpace(s)) }

// FromInt returns the canonical form of a numeric chat ID.
func FromInt(n int64) ID { return ID(strconv.FormatInt(n, 10)) }

// StorageError is returned when the backing file cannot be read, locked or
// written.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("registry %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Registry is a file-backed set of destination IDs. It keeps no state in
// memory, so a Registry is safe for concurrent use.
type Registry struct {
	path     string
	logger   *slog.Logger
	lockWait time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report unreadable files.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithLockWait bounds how long a mutation waits for another process to
// release the lock.
func WithLockWait(d time.Duration) Option {
	return func(r *Registry) { r.lockWait = d }
}

// Open returns a Registry stored at path. It does no I/O; a missing file is
// an empty registry.
func Open(path string, opts ...Option) *Registry {
	r := &Registry{
		path:     path,
		logger:   slog.New(slog.DiscardHandler),
		lockWait: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the location of the backing file.
func (r *Registry) Path() string { return r.path }

// Add subscribes id. It reports false, without writing, if id was already
// present.
func (r *Registry) Add(ctx context.Context, id ID) (bool, error) {
	return r.mutate(ctx, "add", id, func(ids []ID, id ID) ([]ID, bool) {
		if slices.Contains(ids, id) {
			return ids, false
		}
		return append(ids, id), true
	})
}

// Remove unsubscribes id. It reports false, without writing, if id was not
// present.
func (r *Registry) Remove(ctx context.Context, id ID) (bool, error) {
	return r.mutate(ctx, "remove", id, func(ids []ID, id ID) ([]ID, bool) {
		i := slices.Index(ids, id)
		if i < 0 {
			return ids, false
		}
		return slices.Delete(ids, i, i+1), true
	})
}

// Contains reports whether id is subscribed.
func (r *Registry) Contains(id ID) bool {
	return slices.Contains(r.load(), Normalize(string(id)))
}

// List returns the subscribed IDs in file order. The slice is owned by the
// caller.
func (r *Registry) List() []ID { return r.load() }

// Count returns the number of subscribed IDs.
func (r *Registry) Count() int { return len(r.load()) }

// mutate applies fn to the current IDs under the file lock. fn receives the
// normalized id.
func (r *Registry) mutate(ctx context.Context, op string, id ID, fn func(ids []ID, id ID) ([]ID, bool)) (bool, error) {
	id = Normalize(string(id))
	if id == "" {
		return false, ErrEmptyID
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, &StorageError{Op: op, Path: r.path, Err: err}
		}
	}

	lock, err := filelock.AcquireWait(ctx, r.path+".lock", "", r.lockWait)
	if err != nil {
		return false, &StorageError{Op: op, Path: r.path, Err: err}
	}
	defer lock.Release()

	ids, changed := fn(r.load(), id)
	if !changed {
		return false, nil
	}

	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = string(v)
	}
	if err := atomicio.WriteJSON(r.path, out, 0o644); err != nil {
		return false, &StorageError{Op: op, Path: r.path, Err: err}
	}
	r.logger.Info("registry updated", "op", op, "id", string(id), "count", len(ids))
	return true, nil
}

// load reads the file. A missing or unreadable file is an empty registry.
func (r *Registry) load() []ID {
	b, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		r.logger.Warn("registry unreadable, treating as empty", "path", r.path, "err", err)
		return nil
	}

	ids, err := decode(b)
	if err != nil {
		r.logger.Warn("registry malformed, treating as empty", "path", r.path, "err", err)
		return nil
	}
	return ids
}

// decode parses a JSON array of IDs. Numeric entries, written by older
// versions, are accepted. Blank entries and duplicates are dropped.
func decode(b []byte) ([]ID, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after the ID list")
	}

	ids := make([]ID, 0, len(raw))
	for i, v := range raw {
		var id ID
		switch v := v.(type) {
		case string:
			id = Normalize(v)
		case json.Number:
			id = Normalize(v.String())
		default:
			return nil, fmt.Errorf("entry %d: unexpected %T", i, v)
		}
		if id == "" || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
