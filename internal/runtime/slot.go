package runtime

import (
	"context"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/exec"
	"github.com/vk/nodeflow/internal/nodeid"
)

// Slot holds at most one live runtime, guarding it so two callers never
// drive the same executor core concurrently. It replaces an implicit global
// singleton: the composition root constructs one Slot and passes it around
// explicitly.
type Slot struct {
	mu      sync.Mutex
	runtime *Runtime
}

// Replace installs a runtime and returns the previous one, if any.
func (s *Slot) Replace(rt *Runtime) *Runtime {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.runtime
	s.runtime = rt
	return old
}

// TryRunOnce pumps the held runtime for one drain cycle. An attempt that
// cannot immediately acquire the slot is treated as "not ready" and
// skipped, never queued.
func (s *Slot) TryRunOnce(ctx context.Context) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	if s.runtime != nil {
		s.runtime.RunOnce(ctx)
	}
	return true
}

// Introspect reads the last observed value at a monitor path from the held
// runtime's executor.
func (s *Slot) Introspect(path nodeid.Path) (cty.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runtime == nil {
		return cty.NilVal, exec.ErrNotReady
	}
	return s.runtime.executor.Introspect(path)
}
