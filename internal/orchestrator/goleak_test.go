package orchestrator

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures no goroutines leak across this package's tests. Worth
// checking here specifically: Watcher owns an fsnotify event loop plus
// per-path debounce timers, and a test that forgets to call Watcher.Stop
// would otherwise leak silently.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}
