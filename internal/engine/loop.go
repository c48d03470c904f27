package engine

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/engine/internal/core/module"
	"github.com/l1jgo/engine/internal/metrics"
)

// RenderLoopParams is handed to the render loop on the render thread.
type RenderLoopParams struct {
	// Tick runs render tasks, render events and render callbacks once.
	Tick func(dt time.Duration)
	// Stopping is closed when an engine stop has been requested.
	Stopping <-chan struct{}
	// Halt acknowledges the stop and blocks until the update thread has
	// acknowledged it too. The loop must return after calling it.
	Halt func()
}

// RenderLoop owns the render thread until the engine stops.
type RenderLoop func(RenderLoopParams)

// SetRenderLoop installs the render loop. Without one the engine runs a
// headless loop paced at the target framerate.
func (m *Manager) SetRenderLoop(loop RenderLoop) error {
	m.renderMu.Lock()
	defer m.renderMu.Unlock()
	if m.renderLoop != nil {
		return ErrRenderLoopAlreadySet
	}
	m.renderLoop = loop
	return nil
}

// Start runs the update loop on the calling goroutine, which must be the one
// that called Initialize, and the render loop on a second locked goroutine.
// It returns after PostDeinit has been delivered to every module. Cancelling
// ctx requests a graceful stop.
func (m *Manager) Start(ctx context.Context) error {
	if m.CurrentStage() != module.StageRunning {
		return ErrNotInitialized
	}
	if !m.IsUpdateThread() {
		return ErrNotUpdateThread
	}
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer runtime.UnlockOSThread()

	m.renderMu.Lock()
	loop := m.renderLoop
	m.renderMu.Unlock()
	if loop == nil {
		loop = m.headlessRenderLoop
	}

	renderDone := make(chan struct{})
	go m.runRenderThread(loop, renderDone)

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
			m.log.Info("engine context cancelled", zap.Error(ctx.Err()))
			m.requestStop()
		case <-m.stopping:
		}
	}()

	m.log.Info("engine started",
		zap.Int("target_tickrate", m.opts.TargetTickrate),
		zap.Int("target_framerate", m.opts.TargetFramerate))

	m.updateLoop()

	m.log.Debug("update thread observed halt request")
	m.updateAckOnce.Do(func() { close(m.updateAck) })
	m.log.Debug("update thread acknowledged halt request")

	select {
	case <-m.renderAck:
		m.log.Debug("render thread has acknowledged halt request, update thread can proceed")
	case <-renderDone:
	}

	err := m.sequencer.Deinitialize()

	<-renderDone
	<-watchDone
	if n := m.gameTasks.dispose() + m.renderTasks.dispose(); n > 0 {
		m.log.Debug("discarded tasks scheduled after the final tick", zap.Int("count", n))
	}
	m.teardownDone.Store(true)
	m.log.Info("engine stopped")
	return err
}

// Stop requests a graceful stop. A second call made before teardown has
// completed terminates the process with status 1 immediately, so a module
// hung in teardown cannot make the process unkillable.
func (m *Manager) Stop() {
	if m.teardownDone.Load() {
		m.log.Debug("stop requested after engine already stopped")
		return
	}
	n := m.stopSignals.Add(1)
	if n == 1 {
		m.log.Info("engine stop requested")
		m.requestStop()
		return
	}
	m.log.Error("engine stop requested again before teardown completed, terminating",
		zap.Int32("requests", n))
	_ = m.log.Sync()
	m.exit(1)
}

// StopRequested reports whether a stop has been requested.
func (m *Manager) StopRequested() bool {
	select {
	case <-m.stopping:
		return true
	default:
		return false
	}
}

func (m *Manager) requestStop() {
	m.stopOnce.Do(func() { close(m.stopping) })
}

func (m *Manager) updateLoop() {
	tick, stop := pace(m.opts.TargetTickrate)
	defer stop()

	last := time.Now()
	for {
		if tick != nil {
			select {
			case <-m.stopping:
				return
			case <-tick:
			}
		} else {
			select {
			case <-m.stopping:
				return
			default:
			}
		}

		now := time.Now()
		m.updateTick(now.Sub(last))
		last = now
	}
}

// updateTick runs one update pass: game-thread tasks, update events, then
// update callbacks.
func (m *Manager) updateTick(dt time.Duration) {
	thread := m.updateEvents.Target().String()
	if n := m.gameTasks.drain(); n > 0 {
		metrics.TasksRun.WithLabelValues(thread).Add(float64(n))
	}

	m.updateEvents.Flush()
	if n := m.updateEvents.Drain(); n > 0 {
		metrics.EventsDelivered.WithLabelValues(thread).Add(float64(n))
	}

	n := m.updateCallbacks.Tick(dt)
	metrics.CallbacksInvoked.WithLabelValues(thread).Add(float64(n))
	metrics.CallbacksRegistered.WithLabelValues(thread).Set(float64(m.updateCallbacks.Len()))
	metrics.Ticks.Inc()
	m.lastTick.Store(time.Now().UnixNano())
}

// renderTick is the render-thread counterpart of updateTick.
func (m *Manager) renderTick(dt time.Duration) {
	thread := m.renderEvents.Target().String()
	if n := m.renderTasks.drain(); n > 0 {
		metrics.TasksRun.WithLabelValues(thread).Add(float64(n))
	}

	m.renderEvents.Flush()
	if n := m.renderEvents.Drain(); n > 0 {
		metrics.EventsDelivered.WithLabelValues(thread).Add(float64(n))
	}

	n := m.renderCallbacks.Tick(dt)
	metrics.CallbacksInvoked.WithLabelValues(thread).Add(float64(n))
	metrics.CallbacksRegistered.WithLabelValues(thread).Set(float64(m.renderCallbacks.Len()))
	metrics.Frames.Inc()
}

func (m *Manager) runRenderThread(loop RenderLoop, done chan<- struct{}) {
	defer close(done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	m.runRenderInit()
	loop(RenderLoopParams{
		Tick:     m.renderTick,
		Stopping: m.stopping,
		Halt:     m.haltRender,
	})

	if !m.StopRequested() {
		m.log.Warn("render loop returned without a stop request, stopping engine")
		m.requestStop()
	}
	m.haltRender()
}

func (m *Manager) haltRender() {
	m.renderAckOnce.Do(func() {
		m.log.Debug("render thread observed halt request")
		close(m.renderAck)
		m.log.Debug("render thread acknowledged halt request")
	})
	<-m.updateAck
}

func (m *Manager) headlessRenderLoop(p RenderLoopParams) {
	tick, stop := pace(m.opts.TargetFramerate)
	defer stop()

	last := time.Now()
	for {
		if tick != nil {
			select {
			case <-p.Stopping:
				p.Halt()
				return
			case <-tick:
			}
		} else {
			select {
			case <-p.Stopping:
				p.Halt()
				return
			default:
			}
		}

		now := time.Now()
		p.Tick(now.Sub(last))
		last = now
	}
}

// pace returns a ticker channel firing rate times per second, or nil when
// rate is not positive.
func pace(rate int) (<-chan time.Time, func()) {
	if rate <= 0 {
		return nil, func() {}
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	return ticker.C, ticker.Stop
}
