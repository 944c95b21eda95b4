package module

import "sync"

// process registry for wiring ports during bootstrap in main
// the status server looks modules up here after they are built
var (
	mu    sync.RWMutex
	reg   = map[string]any{}
	order []string
)

// Register stores a port set for a module name; re-registering replaces the ports in place
func Register(name string, ports any) {
	mu.Lock()
	if _, ok := reg[name]; !ok {
		order = append(order, name)
	}
	reg[name] = ports
	mu.Unlock()
}

// PortsAs fetches and type asserts a port set for name
func PortsAs[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}

// Names lists registered modules in registration order
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return append([]string(nil), order...)
}

// Reset clears the registry for tests
func Reset() {
	mu.Lock()
	reg = map[string]any{}
	order = nil
	mu.Unlock()
}
