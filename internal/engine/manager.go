package engine

import (
	"errors"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/engine/internal/config"
	"github.com/l1jgo/engine/internal/core/callback"
	"github.com/l1jgo/engine/internal/core/event"
	"github.com/l1jgo/engine/internal/core/lifecycle"
	"github.com/l1jgo/engine/internal/core/module"
	"github.com/l1jgo/engine/internal/core/system"
	"github.com/l1jgo/engine/internal/metrics"
)

var (
	ErrRenderLoopAlreadySet = errors.New("render loop was already registered")
	ErrNotInitialized       = errors.New("engine is not initialized")
	ErrNotUpdateThread      = errors.New("engine must be started from the update thread")
	ErrAlreadyStarted       = errors.New("engine was already started")
)

// Options configure a Manager.
type Options struct {
	Log             *zap.Logger
	TargetTickrate  int    // update ticks per second, 0 = unpaced
	TargetFramerate int    // headless render ticks per second, 0 = unpaced
	ResourcesDir    string // root searched for <namespace>/client.*
	Exit            func(code int)
}

// Manager is the engine kernel: module registry, lifecycle, per-thread
// callback and event dispatch, task handoff and the stop protocol.
type Manager struct {
	log  *zap.Logger
	opts Options
	exit func(int)

	registry  *module.Registry
	sequencer *lifecycle.Sequencer
	sections  *config.Sections

	nsMu      sync.Mutex
	namespace string

	updateCallbacks *system.Runner
	renderCallbacks *system.Runner
	updateEvents    *event.Bus
	renderEvents    *event.Bus
	gameTasks       *taskQueue
	renderTasks     *taskQueue

	updateThread atomic.Int64

	renderMu      sync.Mutex
	renderLoop    RenderLoop
	renderStarted bool
	renderInit    *callback.List[renderInitCallback]

	started       atomic.Bool
	stopSignals   atomic.Int32
	teardownDone  atomic.Bool
	stopping      chan struct{}
	stopOnce      sync.Once
	updateAck     chan struct{}
	updateAckOnce sync.Once
	renderAck     chan struct{}
	renderAckOnce sync.Once
	lastTick      atomic.Int64
}

func New(opts Options) *Manager {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	exit := opts.Exit
	if exit == nil {
		exit = os.Exit
	}
	if opts.ResourcesDir == "" {
		opts.ResourcesDir = "resources"
	}

	registry := module.NewRegistry(log.Named("module"))
	m := &Manager{
		log:       log.Named("engine"),
		opts:      opts,
		exit:      exit,
		registry:  registry,
		sequencer: lifecycle.NewSequencer(registry, log.Named("lifecycle")),
		sections:  config.NewSections(log.Named("config")),

		updateCallbacks: system.NewRunner("update-callbacks", log.Named("callback")),
		renderCallbacks: system.NewRunner("render-callbacks", log.Named("callback")),
		updateEvents:    event.NewBus(event.TargetUpdate, log.Named("event")),
		renderEvents:    event.NewBus(event.TargetRender, log.Named("event")),
		gameTasks:       newTaskQueue("game-tasks", log),
		renderTasks:     newTaskQueue("render-tasks", log),
		renderInit: callback.NewOrderedList[renderInitCallback]("render-init", log.Named("callback"),
			func(a, b renderInitCallback) int { return int(a.ordering) - int(b.ordering) }),

		stopping:  make(chan struct{}),
		updateAck: make(chan struct{}),
		renderAck: make(chan struct{}),
	}

	m.sequencer.AfterStage(module.StagePreInit, m.loadClientConfig)
	m.sequencer.OnStageChange(func(st module.Stage) {
		metrics.LifecycleStage.Set(float64(st))
	})
	return m
}

var (
	instance     *Manager
	instanceOnce sync.Once
)

// Instance returns the process-wide Manager, constructing it with default
// options on first use unless Configure ran first.
func Instance() *Manager {
	instanceOnce.Do(func() { instance = New(Options{}) })
	return instance
}

// Configure constructs the process-wide Manager. It panics if Instance or
// Configure already ran.
func Configure(opts Options) *Manager {
	configured := false
	instanceOnce.Do(func() {
		instance = New(opts)
		configured = true
	})
	if !configured {
		panic("engine: process-wide manager already constructed")
	}
	return instance
}

func (m *Manager) Log() *zap.Logger { return m.log }

// ── Modules and lifecycle ─────────────────────────────────────────

// RegisterModule adds a static module. It must be called before Initialize.
func (m *Manager) RegisterModule(reg module.Registration) error {
	return m.registry.Register(reg)
}

// PresentStaticModules returns the ids of all registered static modules.
func (m *Manager) PresentStaticModules() []string {
	return m.registry.Static()
}

// CurrentStage returns the current lifecycle stage.
func (m *Manager) CurrentStage() module.Stage {
	return m.sequencer.Current()
}

// Initialize binds the calling goroutine as the update thread and brings
// every module up through PostInit. Resolution and client-config errors are
// returned; no module sees a stage after a failure. A second call panics.
func (m *Manager) Initialize() error {
	runtime.LockOSThread()
	if !m.updateThread.CompareAndSwap(0, currentThreadID()) {
		runtime.UnlockOSThread()
		panic(lifecycle.ErrDoubleInitialization)
	}
	return m.sequencer.Initialize()
}

// IsUpdateThread reports whether the caller runs on the update thread.
func (m *Manager) IsUpdateThread() bool {
	id := m.updateThread.Load()
	return id != 0 && id == currentThreadID()
}

// ── Client configuration ──────────────────────────────────────────

// SetPrimaryNamespace selects the client configuration to load. It panics
// if called more than once.
func (m *Manager) SetPrimaryNamespace(ns string) {
	m.nsMu.Lock()
	defer m.nsMu.Unlock()
	if m.namespace != "" {
		panic("engine: primary namespace may only be set once")
	}
	m.namespace = ns
}

func (m *Manager) Namespace() string {
	m.nsMu.Lock()
	defer m.nsMu.Unlock()
	return m.namespace
}

// AddConfigSection registers target to receive the client config section
// named key. Call it during PreInit; the config is loaded right after.
func (m *Manager) AddConfigSection(key string, target any) error {
	return m.sections.Add(key, target)
}

func (m *Manager) loadClientConfig() error {
	if m.sections.Len() == 0 {
		return nil
	}
	ns := m.Namespace()
	if ns == "" {
		return errors.New("client config sections registered but no namespace set")
	}
	_, err := m.sections.Load(m.opts.ResourcesDir, ns)
	return err
}

// ── Callbacks ─────────────────────────────────────────────────────

func (m *Manager) RegisterUpdateCallback(fn system.Callback, ordering system.Ordering) callback.Index {
	return m.updateCallbacks.Register(fn, ordering)
}

func (m *Manager) UnregisterUpdateCallback(id callback.Index) {
	m.updateCallbacks.Unregister(id)
}

func (m *Manager) TryUnregisterUpdateCallback(id callback.Index) bool {
	return m.updateCallbacks.TryUnregister(id)
}

func (m *Manager) RegisterRenderCallback(fn system.Callback, ordering system.Ordering) callback.Index {
	return m.renderCallbacks.Register(fn, ordering)
}

func (m *Manager) UnregisterRenderCallback(id callback.Index) {
	m.renderCallbacks.Unregister(id)
}

func (m *Manager) TryUnregisterRenderCallback(id callback.Index) bool {
	return m.renderCallbacks.TryUnregister(id)
}

// ── Events ────────────────────────────────────────────────────────

func (m *Manager) bus(target event.TargetThread) *event.Bus {
	if target == event.TargetRender {
		return m.renderEvents
	}
	return m.updateEvents
}

// RegisterEventHandler registers fn for events of type T delivered on target.
func RegisterEventHandler[T event.Event](m *Manager, fn func(T), target event.TargetThread, ordering system.Ordering) callback.Index {
	return event.Subscribe(m.bus(target), fn, ordering)
}

func (m *Manager) UnregisterEventHandler(id callback.Index, target event.TargetThread) {
	m.bus(target).Unregister(id)
}

func (m *Manager) TryUnregisterEventHandler(id callback.Index, target event.TargetThread) bool {
	return m.bus(target).TryUnregister(id)
}

// DispatchEvent queues ev for the handlers of target. It never runs handlers
// synchronously.
func (m *Manager) DispatchEvent(ev event.Event, target event.TargetThread) {
	m.bus(target).Emit(ev)
}

// PushEvent queues ev for both threads.
func (m *Manager) PushEvent(ev event.Event) {
	m.updateEvents.Emit(ev)
	m.renderEvents.Emit(ev)
}

// ── Cross-thread tasks ────────────────────────────────────────────

// RunOnGameThread schedules task to run once on the update thread at the
// start of its next tick. Safe to call from any goroutine.
func (m *Manager) RunOnGameThread(task func()) callback.Index {
	return m.gameTasks.push(task)
}

// RunOnRenderThread schedules task to run once on the render thread.
func (m *Manager) RunOnRenderThread(task func()) callback.Index {
	return m.renderTasks.push(task)
}

type renderInitCallback struct {
	fn       func()
	ordering system.Ordering
}

// AddRenderInitCallback schedules fn to run once on the render thread before
// its first frame, in Ordering order with the other init callbacks. Once the
// render thread is up, fn is queued as an ordinary render task instead.
func (m *Manager) AddRenderInitCallback(fn func(), ordering system.Ordering) callback.Index {
	m.renderMu.Lock()
	if !m.renderStarted {
		id := m.renderInit.Add(renderInitCallback{fn: fn, ordering: ordering})
		m.renderMu.Unlock()
		return id
	}
	m.renderMu.Unlock()
	return m.renderTasks.push(fn)
}

func (m *Manager) runRenderInit() {
	m.renderMu.Lock()
	m.renderStarted = true
	m.renderMu.Unlock()

	m.renderInit.Flush()
	entries := m.renderInit.Values()
	for _, e := range entries {
		e.Value.fn()
	}
	if len(entries) > 0 {
		m.log.Debug("ran render init callbacks", zap.Int("count", len(entries)))
	}
}

// ── Health ────────────────────────────────────────────────────────

// LastTick returns when the update thread last completed a tick.
func (m *Manager) LastTick() time.Time {
	ns := m.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
