// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package atomicio writes files so that readers observe either the old or
// the new content, never a partial write.
package atomicio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const backupTimeFormat = "20060102150405.000000000"

// MaxBackups is the number of timestamped backups kept next to a file
// rewritten by [WriteFile]. Zero disables backups.
var MaxBackups = 5

// WriteFile writes data to name through a temporary file in the same
// directory that is synced and then renamed over name. The previous content,
// if any, is kept as name.<timestamp>.bak and old backups are pruned.
func WriteFile(name string, data []byte, perm fs.FileMode) (err error) {
	f, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Chmod(perm); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if MaxBackups > 0 {
		if err := backup(name); err != nil {
			return err
		}
	}
	if err := os.Rename(f.Name(), name); err != nil {
		return err
	}
	if MaxBackups > 0 {
		return pruneBackups(name, MaxBackups)
	}
	return nil
}

// WriteJSON encodes v as indented JSON followed by a newline and writes it
// with [WriteFile].
func WriteJSON(name string, v any, perm fs.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(name), err)
	}
	return WriteFile(name, append(b, '\n'), perm)
}

// backup copies the current content of name aside. A missing file is not an
// error.
func backup(name string) error {
	b, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.WriteFile(name+"."+time.Now().UTC().Format(backupTimeFormat)+".bak", b, 0o600)
}

func pruneBackups(name string, keep int) error {
	backups, err := filepath.Glob(name + ".*.bak")
	if err != nil {
		return err
	}
	if len(backups) <= keep {
		return nil
	}
	// The fixed-width timestamp sorts lexically in time order.
	slices.Sort(backups)
	for _, b := range backups[:len(backups)-keep] {
		if err := os.Remove(b); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
