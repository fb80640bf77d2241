// Package lockfile owns advisory named-resource mutual exclusion.
//
// Ownership boundary:
// - marker creation and removal next to the guarded path
// - per-process held-lock bookkeeping
package lockfile

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

const markerSuffix = ".lock"

var (
	heldMu sync.Mutex
	held   = make(map[string]bool)
)

// Lock attempts to acquire the advisory lock guarding path by creating
// a <path>.lock marker exclusively. It returns false when the marker
// already exists, whether it was created by this process or another.
// Contention never surfaces as an error.
func Lock(path string) bool {
	marker := path + markerSuffix
	f, err := os.OpenFile(marker, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if !os.IsExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("lockfile: marker create failed")
		}
		return false
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	if err := f.Close(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("lockfile: marker close failed")
	}

	heldMu.Lock()
	held[marker] = true
	heldMu.Unlock()
	return true
}

// Unlock releases a lock previously acquired by this process. It is a
// no-op for paths this process does not hold, so a stray Unlock cannot
// break another holder's exclusion.
func Unlock(path string) {
	marker := path + markerSuffix

	heldMu.Lock()
	owned := held[marker]
	delete(held, marker)
	heldMu.Unlock()

	if !owned {
		return
	}
	if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("lockfile: marker remove failed")
	}
}
