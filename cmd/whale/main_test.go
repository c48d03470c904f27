package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/engine/internal/config"
	"github.com/l1jgo/engine/internal/core/module"
	"github.com/l1jgo/engine/internal/engine"
)

func TestNewLogger(t *testing.T) {
	log, err := newLogger(config.LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = newLogger(config.LoggingConfig{Level: "nonsense", Format: "console"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestRootCommand_RequiresNamespace(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())

	cmd = newRootCommand()
	cmd.SetArgs([]string{"a", "b"})
	assert.Error(t, cmd.Execute())
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("WHALE_CONFIG", "")
	assert.Equal(t, "config/engine.toml", defaultConfigPath())
	t.Setenv("WHALE_CONFIG", "/etc/whale.toml")
	assert.Equal(t, "/etc/whale.toml", defaultConfigPath())
}

func newTestManager(t *testing.T) *engine.Manager {
	t.Helper()
	return engine.New(engine.Options{
		Log:             zaptest.NewLogger(t),
		TargetTickrate:  500,
		TargetFramerate: 500,
		Exit:            func(int) { t.Error("unexpected forced exit") },
	})
}

func TestTelemetry_ServesBetweenInitAndDeinit(t *testing.T) {
	mgr := newTestManager(t)
	log := zaptest.NewLogger(t)
	require.NoError(t, mgr.RegisterModule(coreModule(log)))
	tel := newTelemetry(mgr, config.MetricsConfig{Enabled: true, BindAddress: "127.0.0.1:0"}, log)
	require.NoError(t, mgr.RegisterModule(tel.registration()))
	assert.Equal(t, []string{module.CoreID, metricsModuleID}, mgr.PresentStaticModules())

	require.NoError(t, mgr.Initialize())
	require.NotNil(t, tel.srv)
	base := "http://" + tel.srv.Addr()

	for _, path := range []string{"/ready", "/live", "/metrics"} {
		resp, err := http.Get(base + path)
		require.NoError(t, err, path)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	mgr.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, mgr.Start(ctx))

	assert.Nil(t, tel.srv)
	_, err := http.Get(base + "/live")
	assert.Error(t, err)
}

func TestTelemetry_Checks(t *testing.T) {
	mgr := newTestManager(t)
	tel := newTelemetry(mgr, config.MetricsConfig{}, zaptest.NewLogger(t))

	assert.EqualError(t, tel.checkRunning(), "engine is Load")
	assert.NoError(t, tel.checkUpdateLoop())

	// disabled telemetry never binds
	tel.entryPoint(module.StageInit)
	assert.Nil(t, tel.srv)
}

func TestRegisterScripts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hud.lua")
	require.NoError(t, os.WriteFile(path, []byte("function on_lifecycle(stage) end\n"), 0o644))

	mgr := newTestManager(t)
	n, err := registerScripts(mgr, config.ScriptingConfig{Modules: []config.ScriptModule{
		{ID: "hud", Path: path},
	}}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"hud"}, mgr.PresentStaticModules())

	_, err = registerScripts(mgr, config.ScriptingConfig{Modules: []config.ScriptModule{
		{ID: "hud", Path: path},
	}}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, module.ErrDuplicateModule)
}

func TestRun_ContextCancelStopsCleanly(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "engine.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
[engine]
target_tickrate = 200
target_framerate = 200

[logging]
level = "warn"
`), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := run(ctx, &rootOptions{ConfigPath: cfgPath, ResourcesDir: dir}, "demo")
	require.NoError(t, err)
	assert.Equal(t, module.StagePostDeinit, engine.GetCurrentLifecycleStage())
}

type countingStopper struct{ n atomic.Int32 }

func (s *countingStopper) Stop() { s.n.Add(1) }

func TestForwardSignals_StopsEngineAndExits(t *testing.T) {
	st := &countingStopper{}
	stop := forwardSignals(st, zaptest.NewLogger(t))

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	assert.Eventually(t, func() bool { return st.n.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	returned := make(chan struct{})
	go func() {
		stop()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("signal forwarder did not exit")
	}
}
