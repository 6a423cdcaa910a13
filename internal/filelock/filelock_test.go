// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package filelock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/greekangels/cryptodigest/internal/testutil"
)

func TestAcquireConflict(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".run.lock")
	first, err := Acquire(path, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := first.Release(); err != nil {
			t.Fatal(err)
		}
	})

	_, err = Acquire(path, "")
	testutil.AssertErrorIs(t, err, ErrAlreadyLocked)
}

func TestAcquireWritesPayload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".run.lock")
	if err := os.WriteFile(path, []byte("a much longer stale payload\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lock, err := Acquire(path, "pid=123\n")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := lock.Release(); err != nil {
			t.Fatal(err)
		}
	})

	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(payload), "pid=123\n")
}

func TestIsLockedLifecycle(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".run.lock")
	if IsLocked(path) {
		t.Fatal("expected unlocked file")
	}

	lock, err := Acquire(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if !IsLocked(path) {
		t.Fatal("expected file to be locked")
	}
	if err := lock.Release(); err != nil {
		t.Fatal(err)
	}
	if IsLocked(path) {
		t.Fatal("expected file to be unlocked")
	}
}

func TestAcquireWait(t *testing.T) {
	t.Parallel()

	t.Run("released while waiting", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "subscribers.json.lock")
		held, err := Acquire(path, "")
		if err != nil {
			t.Fatal(err)
		}
		go func() {
			time.Sleep(3 * PollInterval)
			held.Release()
		}()

		lock, err := AcquireWait(t.Context(), path, "", 5*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if err := lock.Release(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "subscribers.json.lock")
		held, err := Acquire(path, "")
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { held.Release() })

		_, err = AcquireWait(t.Context(), path, "", 2*PollInterval)
		testutil.AssertErrorIs(t, err, ErrAlreadyLocked)
	})
}
