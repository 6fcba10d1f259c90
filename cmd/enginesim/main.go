package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/riftvale/engine/internal/component"
	"github.com/riftvale/engine/internal/config"
	"github.com/riftvale/engine/internal/core/ecs"
	"github.com/riftvale/engine/internal/core/event"
	"github.com/riftvale/engine/internal/core/job"
	"github.com/riftvale/engine/internal/core/schedule"
	"github.com/riftvale/engine/internal/scripting"
	"github.com/riftvale/engine/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath  = flag.String("config", "", "path to TOML config (built-in defaults if empty)")
		frames   = flag.Int("frames", 0, "stop after this many frames (0 = run until signal)")
		entities = flag.Int("entities", 1000, "number of simulated entities")
		dotPath  = flag.String("dot", "", "write the conflict graph in Graphviz form to this file")
		yamlPath = flag.String("analysis", "", "write the plan analysis as YAML to this file")
	)
	flag.Parse()

	// 1. Load config
	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Job engine and scheduler
	engine, err := job.NewEngine(job.Config{MaxParallelism: cfg.Scheduler.MaxParallelism}, log)
	if err != nil {
		return fmt.Errorf("job engine: %w", err)
	}
	defer engine.Close()

	sched, err := schedule.NewScheduler(schedule.Config{
		MinBatchSizeForParallel: cfg.Scheduler.MinBatchSizeForParallel,
	}, engine, log)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer sched.Close()

	// 4. World, stores, sample entities
	world := ecs.NewWorld()
	positions := ecs.NewStore[component.Position](world)
	velocities := ecs.NewStore[component.Velocity](world)
	healths := ecs.NewStore[component.Health](world)
	lifetimes := ecs.NewStore[component.Lifetime](world)

	for i := 0; i < *entities; i++ {
		id := world.CreateEntity()
		positions.Set(id, &component.Position{X: rand.Float64() * 100, Y: rand.Float64() * 100})
		velocities.Set(id, &component.Velocity{DX: rand.Float64()*10 - 5, DY: rand.Float64()*10 - 5})
		healths.Set(id, &component.Health{HP: int32(rand.Intn(80) + 20), MaxHP: 100})
		if i%10 == 0 {
			lifetimes.Set(id, &component.Lifetime{Remaining: rand.Float64() * 30})
		}
	}

	// 5. Event bus and native systems
	bus := event.NewBus()
	expired := 0
	event.Subscribe(bus, func(ev system.EntityExpired) {
		expired++
		log.Debug("entity expired", zap.Uint64("entity", uint64(ev.ID)))
	})

	systems := []schedule.System{
		system.NewMovementSystem(positions, velocities),
		system.NewRegenSystem(healths, 2),
		system.NewFrictionSystem(velocities, 0.1),
		system.NewLifetimeSystem(world, lifetimes, bus),
		system.NewCleanupSystem(world),
	}

	// 6. Optional Lua systems from the scripts directory
	host := scripting.Host{
		Resources: map[string]ecs.Resource{
			"Position": positions,
			"Velocity": velocities,
			"Health":   healths,
			"Lifetime": lifetimes,
		},
	}
	scripted, err := scripting.LoadDir(cfg.Scripts.Dir, host, log)
	if err != nil {
		return fmt.Errorf("lua systems: %w", err)
	}
	for _, s := range scripted {
		defer s.Close()
		systems = append(systems, s)
	}

	for _, s := range systems {
		if err := sched.Register(s); err != nil {
			return fmt.Errorf("register: %w", err)
		}
	}

	a := sched.Analysis()
	log.Info("batch plan ready",
		zap.Int("systems", a.SystemCount),
		zap.Int("batches", a.BatchCount),
		zap.Int("conflicts", a.ConflictCount),
		zap.Int("max_parallelism", a.MaxParallelism))

	if *dotPath != "" {
		if err := os.WriteFile(*dotPath, []byte(sched.ExportDOT()), 0644); err != nil {
			return fmt.Errorf("write dot: %w", err)
		}
	}
	if *yamlPath != "" {
		doc, err := sched.ExportYAML()
		if err != nil {
			return fmt.Errorf("export analysis: %w", err)
		}
		if err := os.WriteFile(*yamlPath, doc, 0644); err != nil {
			return fmt.Errorf("write analysis: %w", err)
		}
	}

	// 7. Frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Scheduler.TickRate)
	defer ticker.Stop()

	log.Info("frame loop started",
		zap.Duration("tick", cfg.Scheduler.TickRate),
		zap.Int("entities", *entities))

	frame := 0
	for {
		select {
		case <-ticker.C:
			bus.SwapBuffers()
			bus.DispatchAll()
			if err := sched.Update(cfg.Scheduler.TickRate); err != nil {
				log.Error("frame faulted", zap.Int("frame", frame), zap.Error(err))
			}
			frame++
			if *frames > 0 && frame >= *frames {
				log.Info("frame limit reached",
					zap.Int("frames", frame),
					zap.Int("expired_entities", expired))
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received",
				zap.String("signal", sig.String()),
				zap.Int("frames", frame),
				zap.Int("expired_entities", expired))
			return nil
		}
	}
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
