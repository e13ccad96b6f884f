package flow

import (
	"context"
	"sync"
)

// Implements a single task. Receives the effective argument map and returns
// the task's output.
type Action func(ctx context.Context, with map[string]string) (string, error)

var (
	actionsMu sync.RWMutex
	actions   = make(map[string]Action)
)

// Registers an action under a name.
//
// Actions are registered at process start (typically from init functions) by
// whichever binary executes flows. Registering the same name twice replaces
// the earlier action.
func RegisterAction(name string, fn Action) {
	actionsMu.Lock()
	defer actionsMu.Unlock()
	actions[name] = fn
}

// Looks up a registered action by name.
func LookupAction(name string) (Action, bool) {
	actionsMu.RLock()
	defer actionsMu.RUnlock()
	fn, ok := actions[name]
	return fn, ok
}
