package module

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownDependency         = errors.New("unknown module dependency")
	ErrCyclicDependency          = errors.New("cyclic module dependency")
	ErrDuplicateModule           = errors.New("module already registered")
	ErrRegistryFrozen            = errors.New("module registry is frozen")
	ErrDynamicModulesUnsupported = errors.New("dynamic modules are not supported")
)

// UnknownDependencyError names a dependency that matches no registered module.
type UnknownDependencyError struct {
	Module     string // declaring module
	Dependency string // missing id
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("module %q (declared as dependency of %q) is not registered", e.Dependency, e.Module)
}

func (e *UnknownDependencyError) Unwrap() error { return ErrUnknownDependency }

// CyclicDependencyError lists the modules left unsorted because they sit on
// or behind a dependency cycle.
type CyclicDependencyError struct {
	Modules []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("module dependency graph contains a cycle among [%s]", strings.Join(e.Modules, ", "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }
