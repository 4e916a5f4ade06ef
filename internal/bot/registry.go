package bot

import (
	"errors"
	"fmt"
	"sync"
)

// Registry holds the registered modules in registration order.
// Module names are unique.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
	names   map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		names: make(map[string]struct{}),
	}
}

// Register adds a module. It fails if a module with the same name is already registered.
func (r *Registry) Register(m Module) error {
	if m == nil {
		return errors.New("register module: nil module")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := m.Name()
	if _, ok := r.names[name]; ok {
		return fmt.Errorf("register module %q: already registered", name)
	}
	r.names[name] = struct{}{}
	r.modules = append(r.modules, m)
	return nil
}

// Modules returns a snapshot of the registered modules.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Module, len(r.modules))
	copy(result, r.modules)
	return result
}

// The modules register themselves here from their init functions.
var globalRegistry = NewRegistry()

// Register adds a module to the global registry. It panics on a nil module or a
// duplicate name, since both are programming errors in an init function.
func Register(m Module) {
	if err := globalRegistry.Register(m); err != nil {
		panic("bot: " + err.Error())
	}
}

// Modules returns all modules from the global registry.
func Modules() []Module {
	return globalRegistry.Modules()
}

// ResetGlobalRegistry empties the global registry. Tests only.
func ResetGlobalRegistry() {
	globalRegistry = NewRegistry()
}
