package hook

import (
	"context"
	"sync"
)

// Func is a hook function callable from a function-kind hook.
type Func func(ctx context.Context, hctx Context) error

// The function registry replaces the original design's source-file scanning
// of a hooks directory: functions must be registered here explicitly at
// startup, keyed by the same module/function pair the configuration uses.
// A lookup miss is a plain hook failure, never an import of arbitrary code.
var (
	funcsMu sync.RWMutex
	funcs   = make(map[string]Func)
)

// RegisterFunc makes fn addressable as module.function from hook config.
// Later registrations with the same key replace earlier ones.
func RegisterFunc(module, function string, fn Func) {
	funcsMu.Lock()
	defer funcsMu.Unlock()
	funcs[module+"."+function] = fn
}

// LookupFunc resolves a registered hook function.
func LookupFunc(module, function string) (Func, bool) {
	funcsMu.RLock()
	defer funcsMu.RUnlock()
	fn, ok := funcs[module+"."+function]
	return fn, ok
}

// UnregisterFunc removes a registered hook function.
func UnregisterFunc(module, function string) {
	funcsMu.Lock()
	defer funcsMu.Unlock()
	delete(funcs, module+"."+function)
}
