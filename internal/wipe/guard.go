package wipe

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// CleanupGuard owns one session's remote temporary directory and guarantees
// a removal attempt on every exit path. It is bound to the session, not to
// process signals, so the guarantee holds for cancellation, errors and
// normal completion alike.
type CleanupGuard struct {
	bridge Bridge
	serial string
	dir    string
	log    zerolog.Logger

	mu       sync.Mutex
	released bool
}

// NewCleanupGuard creates a guard for dir on the given device. The
// directory is scoped to exactly one wipe session and never shared.
func NewCleanupGuard(bridge Bridge, serial, dir string, log zerolog.Logger) *CleanupGuard {
	return &CleanupGuard{bridge: bridge, serial: serial, dir: dir, log: log}
}

// Dir returns the guarded remote directory.
func (g *CleanupGuard) Dir() string { return g.dir }

// Acquire creates the remote directory.
func (g *CleanupGuard) Acquire(ctx context.Context) error {
	if _, err := g.bridge.Shell(ctx, g.serial, "mkdir -p "+shellQuote(g.dir)); err != nil {
		return fmt.Errorf("%w: creating %s: %s", ErrWriteFailed, g.dir, err)
	}
	return nil
}

// Release removes the remote directory and flushes the deletion. It is
// idempotent: the second and later calls are no-ops, and removing a
// directory that no longer exists is not an error (rm -f semantics). A
// failed removal is reported as ErrCleanupFailed so callers can log a
// warning without letting it mask the wipe outcome.
func (g *CleanupGuard) Release(ctx context.Context) error {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return nil
	}
	g.released = true
	g.mu.Unlock()

	if _, err := g.bridge.Shell(ctx, g.serial, "rm -rf "+shellQuote(g.dir)+" && sync"); err != nil {
		g.log.Warn().Err(err).Str("serial", g.serial).Str("dir", g.dir).Msg("temp directory removal failed")
		return fmt.Errorf("%w: removing %s: %s", ErrCleanupFailed, g.dir, err)
	}

	g.log.Debug().Str("serial", g.serial).Str("dir", g.dir).Msg("temp directory removed")
	return nil
}

// CleanupLeftovers removes temp directories abandoned by earlier
// interrupted runs of this tool on the device.
func CleanupLeftovers(ctx context.Context, bridge Bridge, serial, mount, tempPrefix string) error {
	pattern := mount + "/" + tempPrefix + "*"
	if _, err := bridge.Shell(ctx, serial, "rm -rf "+pattern); err != nil {
		return fmt.Errorf("%w: removing %s: %s", ErrCleanupFailed, pattern, err)
	}
	return nil
}
