package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/l1jgo/engine/internal/core/module"
)

var (
	// ErrDoubleInitialization is the panic value when Initialize is entered twice.
	ErrDoubleInitialization = errors.New("engine initialization was already started")
	// ErrNotInitialized is returned by Deinitialize before a successful Initialize.
	ErrNotInitialized = errors.New("engine is not initialized")
)

// Resolver yields modules in dependency-first order.
type Resolver interface {
	Sorted() ([]*module.Registration, error)
}

type state int32

const (
	stateIdle state = iota
	stateInitializing
	stateRunning
	stateDeinitializing
	stateStopped
	stateFailed
)

// Hook runs after every module has completed a stage.
type Hook func() error

// Sequencer drives registered modules through the lifecycle stages.
type Sequencer struct {
	resolver Resolver
	log      *zap.Logger

	stage atomic.Int32
	state atomic.Int32

	mu       sync.Mutex
	order    []*module.Registration
	hooks    map[module.Stage][]Hook
	onChange []func(module.Stage)
}

func NewSequencer(resolver Resolver, log *zap.Logger) *Sequencer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sequencer{
		resolver: resolver,
		log:      log,
		hooks:    make(map[module.Stage][]Hook),
	}
	s.stage.Store(int32(module.StageLoad))
	return s
}

// AfterStage registers a hook run once all modules completed stage. A hook
// error aborts initialization.
func (s *Sequencer) AfterStage(stage module.Stage, hook Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[stage] = append(s.hooks[stage], hook)
}

// OnStageChange registers an observer called whenever the current stage changes.
func (s *Sequencer) OnStageChange(fn func(module.Stage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Current returns the current stage. Before initialization it reports Load.
func (s *Sequencer) Current() module.Stage {
	return module.Stage(s.stage.Load())
}

// Order returns the resolved module order, or nil before Initialize.
func (s *Sequencer) Order() []*module.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// Initialize resolves module order and delivers Load through PostInit to
// every module, then enters Running. Calling it a second time panics with
// ErrDoubleInitialization.
func (s *Sequencer) Initialize() error {
	if !s.state.CompareAndSwap(int32(stateIdle), int32(stateInitializing)) {
		panic(ErrDoubleInitialization)
	}

	order, err := s.resolver.Sorted()
	if err != nil {
		s.state.Store(int32(stateFailed))
		return fmt.Errorf("resolve modules: %w", err)
	}
	s.mu.Lock()
	s.order = order
	s.mu.Unlock()

	for _, stage := range module.InitStages {
		s.setStage(stage)
		for _, reg := range order {
			s.deliver(reg, stage)
		}
		if err := s.runHooks(stage); err != nil {
			s.state.Store(int32(stateFailed))
			return fmt.Errorf("after %s: %w", stage, err)
		}
	}

	s.setStage(module.StageRunning)
	s.state.Store(int32(stateRunning))
	return nil
}

// Deinitialize delivers PreDeinit through PostDeinit in reverse module order.
func (s *Sequencer) Deinitialize() error {
	if !s.state.CompareAndSwap(int32(stateRunning), int32(stateDeinitializing)) {
		return ErrNotInitialized
	}

	order := s.Order()
	for _, stage := range module.DeinitStages {
		s.setStage(stage)
		for i := len(order) - 1; i >= 0; i-- {
			s.deliver(order[i], stage)
		}
		if err := s.runHooks(stage); err != nil {
			s.log.Error("lifecycle hook failed during teardown",
				zap.Stringer("stage", stage), zap.Error(err))
		}
	}

	s.state.Store(int32(stateStopped))
	return nil
}

func (s *Sequencer) deliver(reg *module.Registration, stage module.Stage) {
	s.log.Debug("sending lifecycle stage", zap.Stringer("stage", stage), zap.String("module", reg.ID))
	reg.EntryPoint(stage)
	s.log.Debug("module completed lifecycle stage", zap.Stringer("stage", stage), zap.String("module", reg.ID))
}

func (s *Sequencer) setStage(stage module.Stage) {
	s.stage.Store(int32(stage))
	s.mu.Lock()
	observers := s.onChange
	s.mu.Unlock()
	for _, fn := range observers {
		fn(stage)
	}
}

func (s *Sequencer) runHooks(stage module.Stage) error {
	s.mu.Lock()
	hooks := s.hooks[stage]
	s.mu.Unlock()
	for _, h := range hooks {
		if err := h(); err != nil {
			return err
		}
	}
	return nil
}
