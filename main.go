package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pthm-cable/natsel/config"
	"github.com/pthm-cable/natsel/creature"
	"github.com/pthm-cable/natsel/game"
	"github.com/pthm-cable/natsel/host"
	"github.com/pthm-cable/natsel/telemetry"
	"github.com/pthm-cable/natsel/ui"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config value, then time-based)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs (empty = config output.dir)")
	maxGenerations := flag.Int("max-generations", 0, "Stop after N generations (0 = use config)")
	population := flag.Int("population", 0, "Initial population (0 = use config)")
	food := flag.Int("food", -1, "Food per generation (-1 = use config)")
	hostEnabled := flag.Bool("host", false, "Serve the current generation over HTTP")
	tui := flag.Bool("tui", false, "Show the terminal dashboard")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	applyFlags(cfg, *seed, *maxGenerations, *population, *food, *hostEnabled, *tui)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid flags", "error", err)
		os.Exit(1)
	}

	dir := cfg.Output.Dir
	if *outputDir != "" {
		dir = *outputDir
	}

	if err := run(cfg, dir, *logLevel); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, seed int64, maxGenerations, population, food int, hostEnabled, tui bool) {
	if seed != 0 {
		cfg.Seed = seed
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if maxGenerations > 0 {
		cfg.Population.MaxGenerations = maxGenerations
	}
	if population > 0 {
		cfg.Population.Initial = population
	}
	if food >= 0 {
		cfg.World.FoodCount = food
	}
	if hostEnabled {
		cfg.Host.Enabled = true
	}
	if tui {
		cfg.Host.TUI = true
	}
}

func run(cfg *config.Config, dir, level string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	output, err := telemetry.NewOutputManager(dir, cfg.Output)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	defer output.Close()

	logger, closeLog, err := newLogger(dir, level, cfg.Host.TUI)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	if err := output.WriteConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	router := host.NewRouter(host.RouterWithLogger(logger))
	defer router.Close()
	view := host.NewView(cfg)
	go view.Follow(ctx, router.Subscribe(), time.Now)

	spawner := creature.NewSpawner(creature.ParamsFromConfig(cfg), cfg.Seed, logger)
	defer spawner.Close()

	opts := []game.Option{
		game.WithLogger(logger),
		game.WithPublisher(router),
	}
	if output != nil {
		opts = append(opts, game.WithSink(output))
	}
	coord := game.NewCoordinator(cfg, game.NewCreatureSpawner(spawner), opts...)

	if cfg.Host.Enabled {
		srv := host.NewServer(cfg.Host, view, coord.Inbox(), host.WithLogger(logger))
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("host_shutdown_failed", "error", err)
			}
		}()
	}

	logger.Info("simulation_start",
		"seed", cfg.Seed,
		"population", cfg.Population.Initial,
		"max_generations", cfg.Population.MaxGenerations,
		"food", cfg.World.FoodCount,
		"output_dir", dir,
	)

	if cfg.Host.TUI {
		return runWithDashboard(ctx, coord, view)
	}
	return finish(coord.Run(ctx), logger, coord)
}

// runWithDashboard runs the coordinator behind the terminal dashboard.
// Quitting the dashboard cancels the simulation.
func runWithDashboard(ctx context.Context, coord *game.Coordinator, view *host.View) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	killer := func(id string) error {
		killCtx, done := context.WithTimeout(ctx, time.Second)
		defer done()
		return host.SendKill(killCtx, coord.Inbox(), id)
	}
	program := tea.NewProgram(ui.New(view, ui.WithKiller(killer)), tea.WithAltScreen(), tea.WithContext(ctx))

	runErr := make(chan error, 1)
	go func() {
		err := coord.Run(ctx)
		program.Quit()
		runErr <- err
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-runErr
		return fmt.Errorf("dashboard: %w", err)
	}
	cancel()
	return finish(<-runErr, slog.Default(), coord)
}

func finish(err error, logger *slog.Logger, coord *game.Coordinator) error {
	summaries := coord.Summaries()
	if errors.Is(err, context.Canceled) {
		logger.Info("simulation_stopped", "generations", len(summaries))
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("simulation_complete", "generations", len(summaries))
	return nil
}

// newLogger logs JSON to stdout and, when dir is set, to dir/run.log. With
// the dashboard on, the terminal belongs to it and only the file is written.
func newLogger(dir, level string, tui bool) (*slog.Logger, func(), error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var writers []io.Writer
	if !tui {
		writers = append(writers, os.Stdout)
	}
	closeFn := func() {}
	if dir != "" {
		f, err := os.OpenFile(filepath.Join(dir, "run.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening run log: %w", err)
		}
		writers = append(writers, f)
		closeFn = func() { f.Close() }
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: lvl})
	return slog.New(handler), closeFn, nil
}
