package boundary

import "sync"

// Process-scoped router instance with explicit lifecycle. Start is
// idempotent: callers across the process share one boundary until Stop
// tears it down.
var (
	globalMu sync.Mutex
	global   *Boundary
)

// Start brings up the process-wide boundary, reusing a running one.
func Start() (*Boundary, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		return global, nil
	}
	b := New(DefaultOptions())
	if _, _, err := b.Start(); err != nil {
		return nil, err
	}
	global = b
	return b, nil
}

// RegisterChannel registers a channel with the process-wide boundary,
// starting it on demand.
func RegisterChannel(channelID string, queue *Queue) (*Handle, error) {
	b, err := Start()
	if err != nil {
		return nil, err
	}
	return b.Register(channelID, queue)
}

// Stop shuts the process-wide boundary down and forgets it; a later
// Start creates a fresh instance.
func Stop() error {
	globalMu.Lock()
	b := global
	global = nil
	globalMu.Unlock()

	if b == nil {
		return nil
	}
	return b.Shutdown()
}
