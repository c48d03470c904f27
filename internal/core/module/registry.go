package module

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// CoreID is the built-in module that script modules implicitly depend on.
const CoreID = "core"

// EntryPoint receives every lifecycle stage delivered to a module.
type EntryPoint func(Stage)

// Registration describes one statically known module.
type Registration struct {
	ID         string
	DependsOn  []string
	EntryPoint EntryPoint
}

// Registry collects module registrations before the engine resolves their
// order. Registration is explicit: nothing is added as a side effect of
// package initialization.
type Registry struct {
	mu      sync.Mutex
	modules []*Registration
	byID    map[string]*Registration
	frozen  bool
	log     *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		modules: make([]*Registration, 0, 16),
		byID:    make(map[string]*Registration),
		log:     log,
	}
}

// Register adds a module. It fails once the registry has been resolved.
func (r *Registry) Register(reg Registration) error {
	if reg.ID == "" {
		return fmt.Errorf("register module: empty id")
	}
	if reg.EntryPoint == nil {
		return fmt.Errorf("register module %q: nil entry point", reg.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("register module %q: %w", reg.ID, ErrRegistryFrozen)
	}
	if _, ok := r.byID[reg.ID]; ok {
		return fmt.Errorf("register module %q: %w", reg.ID, ErrDuplicateModule)
	}

	deps := make([]string, len(reg.DependsOn))
	copy(deps, reg.DependsOn)
	stored := &Registration{ID: reg.ID, DependsOn: deps, EntryPoint: reg.EntryPoint}
	r.modules = append(r.modules, stored)
	r.byID[reg.ID] = stored

	r.log.Debug("registered static module",
		zap.String("module", reg.ID),
		zap.Strings("depends_on", deps))
	return nil
}

// MustRegister is Register for tables of built-in modules.
func (r *Registry) MustRegister(regs ...Registration) {
	for _, reg := range regs {
		if err := r.Register(reg); err != nil {
			panic(err)
		}
	}
}

// Static returns the ids of all registered modules in registration order.
func (r *Registry) Static() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.modules))
	for i, m := range r.modules {
		ids[i] = m.ID
	}
	return ids
}

// Count returns the number of registered modules.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modules)
}

// Sorted freezes the registry and returns its modules in dependency-first
// order.
func (r *Registry) Sorted() ([]*Registration, error) {
	r.mu.Lock()
	r.frozen = true
	mods := make([]*Registration, len(r.modules))
	copy(mods, r.modules)
	r.mu.Unlock()

	return Resolve(mods)
}

// RegisterDynamicModule is kept for API compatibility. Runtime-loaded
// modules are not supported.
func RegisterDynamicModule(id string, _ EntryPoint, _ []string) error {
	return fmt.Errorf("register dynamic module %q: %w", id, ErrDynamicModulesUnsupported)
}

// EnableDynamicModule always reports false.
func EnableDynamicModule(string) bool { return false }

// PresentDynamicModules always returns an empty list.
func PresentDynamicModules() []string { return []string{} }
