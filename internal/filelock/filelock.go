// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package filelock provides advisory file locks used to serialize
// cross-process access to the subscriber registry and to keep scheduled runs
// from overlapping.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// ErrAlreadyLocked indicates the lock is currently held by another process.
var ErrAlreadyLocked = errors.New("already locked")

// PollInterval is how often [AcquireWait] retries a held lock.
const PollInterval = 50 * time.Millisecond

// Lock represents a held file lock.
type Lock interface{ Release() error }

type fileLock struct{ file *os.File }

// Acquire obtains a non-blocking exclusive lock for path and, if payload is
// not empty, replaces the lock file content with it.
func Acquire(path, payload string) (Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if closeErr := f.Close(); closeErr != nil {
			return nil, errors.Join(err, closeErr)
		}
		if isWouldBlock(err) {
			return nil, ErrAlreadyLocked
		}
		return nil, err
	}
	l := &fileLock{file: f}
	if payload == "" {
		return l, nil
	}
	if err := writePayload(f, payload); err != nil {
		return nil, errors.Join(err, l.Release())
	}
	return l, nil
}

// AcquireWait is like [Acquire] but keeps retrying a held lock until it is
// released or wait elapses. On timeout the returned error wraps
// [ErrAlreadyLocked].
func AcquireWait(ctx context.Context, path, payload string, wait time.Duration) (Lock, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		l, err := Acquire(path, payload)
		if !errors.Is(err, ErrAlreadyLocked) {
			return l, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w after %v: %s", ErrAlreadyLocked, wait, path)
		case <-ticker.C:
		}
	}
}

// IsLocked reports whether path is currently locked by someone else.
func IsLocked(path string) bool {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false
	}
	defer f.Close()

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return false
	}
	return isWouldBlock(err)
}

func (l *fileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		return errors.Join(err, l.file.Close())
	}
	return l.file.Close()
}

func writePayload(f *os.File, payload string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := f.WriteString(payload)
	return err
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}
