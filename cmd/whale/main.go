package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/engine/internal/config"
	"github.com/l1jgo/engine/internal/engine"
	"github.com/l1jgo/engine/internal/scripting"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	ConfigPath   string
	ResourcesDir string
}

func defaultConfigPath() string {
	if p := os.Getenv("WHALE_CONFIG"); p != "" {
		return p
	}
	return "config/engine.toml"
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "whale <namespace>",
		Short: "Run the Whale engine kernel",
		Long: `Run the Whale engine kernel for one client namespace.

The namespace selects <resources>/<namespace>/client.toml (or client.yaml),
from which modules read their configuration sections. Send SIGINT or SIGTERM
once for a graceful stop; a second signal during teardown exits immediately.

Example:
  whale demo
  whale --config ./engine.toml --resources ./assets demo`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", defaultConfigPath(), "path to engine config (env WHALE_CONFIG)")
	cmd.Flags().StringVar(&opts.ResourcesDir, "resources", "", "override engine.resources_dir")

	return cmd
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(namespace string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m               Whale  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        real-time engine kernel            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mnamespace:\033[0m %s\n\n", namespace)
}

func printSection(title string) {
	lineLen := max(46-utf8.RuneCountInString(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-utf8.RuneCountInString(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Engine startup ────────────────────────────────────────────────

func run(ctx context.Context, opts *rootOptions, namespace string) error {
	// 1. Load config
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.ResourcesDir != "" {
		cfg.Engine.ResourcesDir = opts.ResourcesDir
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(namespace)

	// 3. Build the engine and register static modules
	mgr := engine.Configure(engine.Options{
		Log:             log,
		TargetTickrate:  cfg.Engine.TargetTickrate,
		TargetFramerate: cfg.Engine.TargetFramerate,
		ResourcesDir:    cfg.Engine.ResourcesDir,
	})
	mgr.SetPrimaryNamespace(namespace)

	printSection("modules")
	if err := registerBuiltins(mgr, cfg, log); err != nil {
		return err
	}
	scripts, err := registerScripts(mgr, cfg.Scripting, log)
	if err != nil {
		return err
	}
	printStat("static modules", len(mgr.PresentStaticModules()))
	printStat("lua modules", scripts)
	fmt.Println()

	// 4. Map OS signals onto the stop protocol
	stopSignals := forwardSignals(mgr, log)
	defer stopSignals()

	// 5. Bring modules up on this goroutine, which becomes the update thread
	printSection("lifecycle")
	if err := mgr.Initialize(); err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	printOK("modules initialized")
	printReady(fmt.Sprintf("update loop %d Hz, render loop %d Hz", cfg.Engine.TargetTickrate, cfg.Engine.TargetFramerate))
	fmt.Println()

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	log.Info("engine exited cleanly")
	return nil
}

// forwardSignals maps SIGINT and SIGTERM onto mgr.Stop until the returned
// function is called.
func forwardSignals(mgr stopper, log *zap.Logger) func() {
	sigCh := make(chan os.Signal, 2)
	done := make(chan struct{})
	exited := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer close(exited)
		for {
			select {
			case sig := <-sigCh:
				log.Info("received shutdown signal", zap.String("signal", sig.String()))
				mgr.Stop()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
		<-exited
	}
}

type stopper interface {
	Stop()
}

func registerScripts(mgr *engine.Manager, cfg config.ScriptingConfig, log *zap.Logger) (int, error) {
	for _, sm := range cfg.Modules {
		m, err := scripting.NewModule(sm, mgr, log.Named("scripting"))
		if err != nil {
			return 0, err
		}
		if err := mgr.RegisterModule(m.Registration()); err != nil {
			return 0, fmt.Errorf("register %s: %w", sm.ID, err)
		}
	}
	return len(cfg.Modules), nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
