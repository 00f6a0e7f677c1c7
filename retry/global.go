package retry

import (
	"log/slog"
	"sync"
)

var (
	globalMu   sync.Mutex
	globalExec *Executor
)

// DefaultExecutor returns the shared, lazily initialized executor.
// It uses NewDefaultExecutor() if SetGlobal has not been called.
func DefaultExecutor() *Executor {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalExec == nil {
		globalExec = NewDefaultExecutor()
	}
	return globalExec
}

// SetGlobal installs exec as the default executor. It must be called before
// DefaultExecutor is first used; later calls log a warning and do nothing.
func SetGlobal(exec *Executor) {
	if exec == nil {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalExec != nil {
		slog.Warn("retry: SetGlobal called after global executor already initialized; ignoring")
		return
	}
	globalExec = exec
}

// resetGlobal is used by tests.
func resetGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalExec = nil
}
