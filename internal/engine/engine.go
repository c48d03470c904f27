package engine

import (
	"github.com/l1jgo/engine/internal/core/callback"
	"github.com/l1jgo/engine/internal/core/event"
	"github.com/l1jgo/engine/internal/core/module"
	"github.com/l1jgo/engine/internal/core/system"
)

// Process-wide shorthands over Instance(), for collaborators that have no
// Manager passed down to them.

func GetPresentStaticModules() []string { return Instance().PresentStaticModules() }

func GetCurrentLifecycleStage() module.Stage { return Instance().CurrentStage() }

func RegisterUpdateCallback(fn system.Callback, ordering system.Ordering) callback.Index {
	return Instance().RegisterUpdateCallback(fn, ordering)
}

func UnregisterUpdateCallback(id callback.Index) { Instance().UnregisterUpdateCallback(id) }

func RegisterRenderCallback(fn system.Callback, ordering system.Ordering) callback.Index {
	return Instance().RegisterRenderCallback(fn, ordering)
}

func UnregisterRenderCallback(id callback.Index) { Instance().UnregisterRenderCallback(id) }

func DispatchEvent(ev event.Event, target event.TargetThread) { Instance().DispatchEvent(ev, target) }

func RunOnGameThread(task func()) callback.Index { return Instance().RunOnGameThread(task) }

func IsCurrentThreadUpdateThread() bool { return Instance().IsUpdateThread() }

func StopEngine() { Instance().Stop() }
