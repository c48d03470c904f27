package scripting

import (
	"fmt"
	"os"
	"slices"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/engine/internal/config"
	"github.com/l1jgo/engine/internal/core/callback"
	"github.com/l1jgo/engine/internal/core/module"
	"github.com/l1jgo/engine/internal/core/system"
)

// Host is the part of the engine a Lua module binds to. *engine.Manager
// satisfies it.
type Host interface {
	RegisterUpdateCallback(fn system.Callback, ordering system.Ordering) callback.Index
	UnregisterUpdateCallback(id callback.Index)
	RunOnGameThread(task func()) callback.Index
	CurrentStage() module.Stage
	Stop()
}

// Module is a static module whose behaviour lives in a Lua script. The VM is
// only touched from lifecycle delivery and update-thread callbacks, so it is
// never shared between goroutines.
type Module struct {
	id   string
	deps []string
	host Host
	log  *zap.Logger
	vm   *lua.LState
}

// NewModule loads the script at cfg.Path. The module depends on the built-in
// core module in addition to cfg.DependsOn.
func NewModule(cfg config.ScriptModule, host Host, log *zap.Logger) (*Module, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("script module %s: missing id", cfg.Path)
	}
	if log == nil {
		log = zap.NewNop()
	}
	src, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("script module %s: %w", cfg.ID, err)
	}

	deps := []string{module.CoreID}
	for _, d := range cfg.DependsOn {
		if !slices.Contains(deps, d) {
			deps = append(deps, d)
		}
	}

	m := &Module{
		id:   cfg.ID,
		deps: deps,
		host: host,
		log:  log.With(zap.String("module", cfg.ID)),
		vm:   lua.NewState(),
	}
	m.vm.SetGlobal("API_VERSION", lua.LNumber(1))
	m.vm.SetGlobal("MODULE_ID", lua.LString(cfg.ID))
	m.bind()

	if err := m.vm.DoString(string(src)); err != nil {
		m.vm.Close()
		return nil, fmt.Errorf("load %s: %w", cfg.Path, err)
	}
	m.log.Debug("loaded lua module", zap.String("file", cfg.Path))
	return m, nil
}

// Registration describes m to the module registry.
func (m *Module) Registration() module.Registration {
	return module.Registration{
		ID:         m.id,
		DependsOn:  m.deps,
		EntryPoint: m.entryPoint,
	}
}

func (m *Module) ID() string { return m.id }

// Closed reports whether the VM has been released.
func (m *Module) Closed() bool { return m.vm == nil }

func (m *Module) entryPoint(stage module.Stage) {
	if m.vm == nil {
		return
	}
	if fn := m.vm.GetGlobal("on_lifecycle"); fn != lua.LNil {
		m.call("on_lifecycle", fn, lua.LString(stage.String()))
	}
	if stage == module.StagePostDeinit {
		m.vm.Close()
		m.vm = nil
		m.log.Debug("closed lua module")
	}
}

// call runs fn in protected mode. Script errors are logged and never reach
// the engine loop.
func (m *Module) call(name string, fn lua.LValue, args ...lua.LValue) {
	if m.vm == nil {
		return
	}
	if err := m.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		m.log.Error("lua call failed", zap.String("function", name), zap.Error(err))
	}
}

func (m *Module) bind() {
	m.vm.SetGlobal("register_update_callback", m.vm.NewFunction(m.luaRegisterUpdateCallback))
	m.vm.SetGlobal("unregister_update_callback", m.vm.NewFunction(m.luaUnregisterUpdateCallback))
	m.vm.SetGlobal("run_on_game_thread", m.vm.NewFunction(m.luaRunOnGameThread))
	m.vm.SetGlobal("lifecycle_stage", m.vm.NewFunction(m.luaLifecycleStage))
	m.vm.SetGlobal("stop_engine", m.vm.NewFunction(m.luaStopEngine))
	m.vm.SetGlobal("log", m.vm.NewFunction(m.luaLog))
}

// register_update_callback(fn) -> index. fn receives the tick delta in
// microseconds.
func (m *Module) luaRegisterUpdateCallback(L *lua.LState) int {
	fn := L.CheckFunction(1)
	id := m.host.RegisterUpdateCallback(func(dt time.Duration) {
		m.call("update callback", fn, lua.LNumber(dt.Microseconds()))
	}, system.OrderingStandard)
	L.Push(lua.LNumber(id))
	return 1
}

func (m *Module) luaUnregisterUpdateCallback(L *lua.LState) int {
	m.host.UnregisterUpdateCallback(callback.Index(L.CheckInt64(1)))
	return 0
}

// run_on_game_thread(fn) -> index
func (m *Module) luaRunOnGameThread(L *lua.LState) int {
	fn := L.CheckFunction(1)
	id := m.host.RunOnGameThread(func() {
		m.call("game thread task", fn)
	})
	L.Push(lua.LNumber(id))
	return 1
}

func (m *Module) luaLifecycleStage(L *lua.LState) int {
	L.Push(lua.LString(m.host.CurrentStage().String()))
	return 1
}

func (m *Module) luaStopEngine(L *lua.LState) int {
	m.log.Info("lua module requested engine stop")
	m.host.Stop()
	return 0
}

func (m *Module) luaLog(L *lua.LState) int {
	m.log.Info(L.CheckString(1))
	return 0
}
