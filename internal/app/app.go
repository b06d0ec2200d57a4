package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"schedbot/internal/agent"
	"schedbot/internal/config"
	"schedbot/internal/engine"
	"schedbot/internal/eventbus"
	"schedbot/internal/notify"
	"schedbot/internal/runner"
	rtsup "schedbot/internal/runtime/supervisor"
	"schedbot/internal/storage"
	"schedbot/internal/task"
	logx "schedbot/pkg/logx"
)

// App wires config, logging, storage, notifications, and the scheduler
// engine into one process.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	logs *logx.Service
	log  logx.Logger

	bus   eventbus.Bus
	eng   *engine.Engine
	store storage.Store
	notif *notify.Notifier
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Runner mapping. No command configured means dry-run mode.
	var rn runner.Runner
	if strings.TrimSpace(cfg.Agent.Command) != "" {
		rn, err = agent.New(agent.Config{
			Command: cfg.Agent.Command,
			Args:    cfg.Agent.Args,
			Workdir: cfg.Agent.Workdir,
		}, log.With(logx.String("comp", "agent")))
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("agent.command is empty; runs will be no-ops")
		rn = runner.Nop()
	}

	engCfg, err := engineConfig(cfg.Scheduler)
	if err != nil {
		return nil, err
	}

	reg := task.NewRegistry()
	defs, err := cfg.Definitions()
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		reg.Put(def)
	}

	eng := engine.New(engCfg, reg, rn, log.With(logx.String("comp", "engine")), bus)

	// Storage mapping (optional).
	var store storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
	}

	// Notify mapping (optional).
	var notif *notify.Notifier
	if cfg.Notify != nil && cfg.Notify.Telegram.Enabled {
		notif, err = notify.New(notify.Config{
			Token:      cfg.Notify.Telegram.Token,
			ChatID:     cfg.Notify.Telegram.ChatID,
			RatePerMin: cfg.Notify.Telegram.RatePerMin,
		}, bus, log.With(logx.String("comp", "notify")))
		if err != nil {
			return nil, err
		}
	}

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		logs:    logs,
		log:     log,
		bus:     bus,
		eng:     eng,
		store:   store,
		notif:   notif,
	}, nil
}

func engineConfig(sc config.SchedulerConfig) (engine.Config, error) {
	reconcile, err := config.ParseDurationOrDefault("scheduler.reconcile_every", sc.ReconcileEvery, 30*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Enabled:        sc.Enabled,
		HistorySize:    sc.HistorySize,
		ReconcileEvery: reconcile,
		KillOverruns:   sc.KillOverruns,
	}, nil
}

// Engine exposes the scheduler engine for status surfaces and tests.
func (a *App) Engine() *engine.Engine { return a.eng }

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := engineConfig(cfg.Scheduler); err != nil {
			return err
		}
		if cfg.Storage != nil {
			if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
				return err
			}
		}
		_, err := cfg.Definitions()
		return err
	})

	if err := a.eng.Start(a.sup.Context()); err != nil && !errors.Is(err, engine.ErrDisabled) {
		return err
	}

	if a.store != nil {
		rec := storage.NewRecorder(a.store, a.bus, a.log.With(logx.String("comp", "storage")))
		a.sup.Go("storage.recorder", rec.Run)
	}
	if a.notif != nil {
		a.sup.Go("notify.telegram", a.notif.Run)
	}

	// Hot reload: live task add/remove; other sections are logged and take
	// effect on restart (logging excepted, which applies immediately).
	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", a.cfgm.Watch)

	if iv := WatchdogInterval(); iv > 0 {
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			t := time.NewTicker(iv)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return nil
				case <-t.C:
					NotifyWatchdog()
				}
			}
		})
	}

	a.log.Info("app started")
	return nil
}

func (a *App) applyReload(oldCfg, newCfg *config.Config) {
	sections, attrs, taskChanged := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Debug("config change summary",
		append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
	})

	// Live task re-apply. The validator already vetted the whole config, so
	// a per-task failure here is unexpected and worth a warning.
	if len(taskChanged) > 0 {
		present := map[string]config.TaskConfig{}
		for _, tc := range newCfg.Tasks {
			present[strings.TrimSpace(tc.Name)] = tc
		}
		for _, name := range taskChanged {
			tc, ok := present[name]
			if !ok {
				if err := a.eng.Remove(name); err != nil && !errors.Is(err, engine.ErrNotFound) {
					a.log.Warn("task remove failed", logx.String("task", name), logx.Err(err))
				}
				continue
			}
			def, err := tc.Definition()
			if err != nil {
				a.log.Warn("task rejected on reload", logx.String("task", name), logx.Err(err))
				continue
			}
			if err := a.eng.Add(def); err != nil {
				a.log.Warn("task add failed", logx.String("task", name), logx.Err(err))
			}
		}

		snap := a.eng.Snapshot()
		for _, st := range snap.Tasks {
			fields := []logx.Field{
				logx.String("task", st.Name),
				logx.String("state", st.State.String()),
				logx.String("schedule", st.Summary),
			}
			if !st.NextRun.IsZero() {
				fields = append(fields, logx.Time("due", st.NextRun))
			}
			a.log.Debug("task status", fields...)
		}
	}

	for _, s := range sections {
		switch s {
		case "logging", "tasks":
			// applied above
		default:
			a.log.Warn("config section changed; restart required to apply", logx.String("section", s))
		}
	}

	a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	a.eng.Stop(stopCtx)

	a.sup.Cancel()
	if err := a.sup.Wait(stopCtx); err != nil && stopCtx.Err() != nil {
		a.log.Warn("shutdown timed out", logx.Int64("active", a.sup.Active()))
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}

	a.log.Info("stopped")
	return a.logs.Close()
}
