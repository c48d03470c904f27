package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/engine/internal/config"
	"github.com/l1jgo/engine/internal/core/module"
	"github.com/l1jgo/engine/internal/engine"
	"github.com/l1jgo/engine/internal/metrics"
)

const (
	metricsModuleID = "metrics"
	// update loop stall after which /live reports failure
	livenessStall = 5 * time.Second
)

func registerBuiltins(mgr *engine.Manager, cfg *config.Config, log *zap.Logger) error {
	if err := mgr.RegisterModule(coreModule(log)); err != nil {
		return fmt.Errorf("register core: %w", err)
	}
	if err := mgr.RegisterModule(newTelemetry(mgr, cfg.Metrics, log).registration()); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	return nil
}

func coreModule(log *zap.Logger) module.Registration {
	log = log.Named(module.CoreID)
	return module.Registration{
		ID: module.CoreID,
		EntryPoint: func(stage module.Stage) {
			log.Debug("core module stage", zap.Stringer("stage", stage))
		},
	}
}

// telemetry serves the Prometheus registry and health checks while the
// engine is between Init and Deinit.
type telemetry struct {
	mgr *engine.Manager
	cfg config.MetricsConfig
	log *zap.Logger
	srv *metrics.Server
}

func newTelemetry(mgr *engine.Manager, cfg config.MetricsConfig, log *zap.Logger) *telemetry {
	return &telemetry{mgr: mgr, cfg: cfg, log: log.Named(metricsModuleID)}
}

func (t *telemetry) registration() module.Registration {
	return module.Registration{
		ID:         metricsModuleID,
		DependsOn:  []string{module.CoreID},
		EntryPoint: t.entryPoint,
	}
}

func (t *telemetry) entryPoint(stage module.Stage) {
	if !t.cfg.Enabled {
		return
	}
	switch stage {
	case module.StageInit:
		t.start()
	case module.StageDeinit:
		t.stop()
	}
}

func (t *telemetry) start() {
	srv := metrics.NewServer(t.cfg.BindAddress, t.log)
	srv.AddLivenessCheck("update-loop", t.checkUpdateLoop)
	srv.AddReadinessCheck("lifecycle", t.checkRunning)
	if err := srv.Start(); err != nil {
		t.log.Error("metrics endpoint unavailable", zap.Error(err))
		return
	}
	t.srv = srv
}

func (t *telemetry) stop() {
	if t.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.srv.Shutdown(ctx); err != nil {
		t.log.Warn("metrics endpoint shutdown", zap.Error(err))
	}
	t.srv = nil
}

func (t *telemetry) checkUpdateLoop() error {
	last := t.mgr.LastTick()
	if last.IsZero() || t.mgr.CurrentStage() != module.StageRunning {
		return nil
	}
	if since := time.Since(last); since > livenessStall {
		return fmt.Errorf("update loop stalled for %s", since.Round(time.Millisecond))
	}
	return nil
}

func (t *telemetry) checkRunning() error {
	if st := t.mgr.CurrentStage(); st != module.StageRunning {
		return errors.New("engine is " + st.String())
	}
	return nil
}
