package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"schedbot/internal/eventbus"
	"schedbot/internal/runner"
	rtsup "schedbot/internal/runtime/supervisor"
	"schedbot/internal/schedule"
	"schedbot/internal/task"
	logx "schedbot/pkg/logx"
)

// Engine is the scheduler orchestrator. It watches the task registry,
// computes due times, arms one timer per due task, launches runs through the
// external runner, and keeps the execution ledger and history consistent.
//
// The registry and ledger are mutated only through the engine's entry points
// under a single mutex; timer and completion callbacks re-enter through the
// same lock, so arming never races firing.
type Engine struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	reg *task.Registry
	rn  runner.Runner

	entries map[string]*entry
	history map[string][]HistoryRecord
	runSeq  uint64

	c       *cron.Cron
	sup     *rtsup.Supervisor
	started bool

	overrunWarn *rate.Limiter

	// now is swapped in tests.
	now func() time.Time
}

func New(cfg Config, reg *task.Registry, rn runner.Runner, log logx.Logger, bus eventbus.Bus) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if rn == nil {
		rn = runner.Nop()
	}
	return &Engine{
		cfg:         cfg.withDefaults(),
		log:         log,
		bus:         bus,
		reg:         reg,
		rn:          rn,
		entries:     map[string]*entry{},
		history:     map[string][]HistoryRecord{},
		overrunWarn: rate.NewLimiter(rate.Every(10*time.Second), 1),
		now:         time.Now,
	}
}

// Registry exposes the engine-owned registry for read access (status
// surfaces). Mutations must go through Add/Remove.
func (g *Engine) Registry() *task.Registry { return g.reg }

// Start arms timers for all registered tasks and begins the reconcile
// sweep. Idempotent.
func (g *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	g.mu.Lock()
	if !g.cfg.Enabled {
		g.mu.Unlock()
		return ErrDisabled
	}
	if g.started {
		g.mu.Unlock()
		return nil
	}
	g.started = true
	g.sup = rtsup.New(ctx, rtsup.WithLogger(g.log.With(logx.String("comp", "engine"))))

	for _, def := range g.reg.List() {
		g.armLocked(def)
	}
	armed := len(g.entries)

	g.c = cron.New()
	sched, spread := newSweepSchedule(g.cfg.ReconcileEvery, g.now())
	g.c.Schedule(sched, cron.FuncJob(g.reconcile))
	g.c.Start()
	g.mu.Unlock()

	g.log.Info("engine started",
		logx.Int("tasks", g.reg.Len()),
		logx.Int("armed", armed),
		logx.Duration("reconcile_every", g.cfg.ReconcileEvery),
		logx.Duration("sweep_spread", spread),
	)
	return nil
}

// Stop cancels all pending timers synchronously, signals all running work
// to cancel, and waits for in-flight runs to report completion bounded by
// ctx. Pending entries are deleted (no history is recorded for a run that
// never started); running entries self-delete when their run completes.
func (g *Engine) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	c := g.c
	g.c = nil
	sup := g.sup
	g.sup = nil

	var cancelled, draining int
	for name, ent := range g.entries {
		if ent.timer != nil {
			cancelled++
		}
		ent.disarmLocked()
		for _, r := range ent.runs {
			r.cancel()
		}
		if len(ent.runs) == 0 {
			delete(g.entries, name)
		} else {
			draining += len(ent.runs)
		}
	}
	g.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}

	if sup != nil {
		sup.Cancel()
		if err := sup.Wait(ctx); err != nil && ctx.Err() != nil {
			g.log.Warn("engine stop timed out; runs still draining",
				logx.Int64("active", sup.Active()), logx.Err(ctx.Err()))
		}
	}

	g.log.Info("engine stopped",
		logx.Int("timers_cancelled", cancelled),
		logx.Int("runs_signalled", draining),
		logx.Duration("took", time.Since(start)),
	)
}

// Add validates and registers a definition, replacing any existing task of
// the same name, and (re)computes its due time when the engine is running.
// Validation failures reject the add; the registry is left untouched.
func (g *Engine) Add(def task.Definition) error {
	def.Name = strings.TrimSpace(def.Name)
	if err := def.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	replaced := g.reg.Put(def)
	if g.started {
		if ent := g.entries[def.Name]; ent != nil {
			ent.disarmLocked()
			if len(ent.runs) == 0 {
				delete(g.entries, def.Name)
			} else if !def.AllowOverlap {
				// A previous run is still in flight; rescheduling under the
				// new definition happens when it completes.
				g.mu.Unlock()
				g.log.Debug("task replaced while running; rearm deferred", logx.String("task", def.Name))
				return nil
			}
		}
		g.armLocked(def)
	}
	next := g.nextLocked(def.Name)
	g.mu.Unlock()

	fields := []logx.Field{logx.String("task", def.Name), logx.String("schedule", def.Summary()), logx.Bool("replaced", replaced)}
	if !next.IsZero() {
		fields = append(fields, logx.Time("due", next))
	}
	g.log.Info("task registered", fields...)
	return nil
}

// Remove unregisters a task. A pending timer is cancelled; an in-flight run
// is signalled to cancel and its eventual completion is discarded along
// with the task's history. Unknown names return ErrNotFound with no side
// effects.
func (g *Engine) Remove(name string) error {
	name = strings.TrimSpace(name)

	g.mu.Lock()
	if !g.reg.Remove(name) {
		g.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	var cancelled int
	if ent := g.entries[name]; ent != nil {
		ent.disarmLocked()
		for _, r := range ent.runs {
			r.cancel()
			cancelled++
		}
		delete(g.entries, name)
	}
	delete(g.history, name)
	g.mu.Unlock()

	g.log.Info("task removed", logx.String("task", name), logx.Int("runs_cancelled", cancelled))
	return nil
}

// armLocked computes the task's next due time and arms its timer. A zero
// next-run time means "not currently schedulable": no entry is kept and the
// reconcile sweep retries later. Engine mutex must be held.
func (g *Engine) armLocked(def task.Definition) {
	now := g.now()
	next := schedule.NextRun(def, now)
	name := def.Name
	if next.IsZero() {
		if ent := g.entries[name]; ent != nil && len(ent.runs) == 0 && ent.timer == nil {
			delete(g.entries, name)
		}
		g.log.Debug("task not schedulable", logx.String("task", name), logx.String("schedule", def.Summary()))
		return
	}

	ent := g.entries[name]
	if ent == nil {
		ent = &entry{runs: map[uint64]*run{}}
		g.entries[name] = ent
	}
	ent.ver++
	ver := ent.ver
	ent.next = next
	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	ent.timer = time.AfterFunc(d, func() { g.fire(name, ver) })
	g.log.Debug("task armed", logx.String("task", name), logx.Time("due", next), logx.Duration("in", d))
}

// fire handles a timer expiry for the given entry version. Stale callbacks
// (entry replaced, disarmed, or task removed) are no-ops.
func (g *Engine) fire(name string, ver uint64) {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	ent := g.entries[name]
	if ent == nil || ent.ver != ver {
		g.mu.Unlock()
		return
	}
	ent.timer = nil
	ent.next = time.Time{}

	def, ok := g.reg.Get(name)
	if !ok {
		if len(ent.runs) == 0 {
			delete(g.entries, name)
		}
		g.mu.Unlock()
		return
	}

	if !def.AllowOverlap && len(ent.runs) > 0 {
		// The fire starts no new work, but an in-flight run may be overdue.
		g.checkOverrunLocked(name, def, ent, g.now())
		g.mu.Unlock()
		g.log.Warn("run skipped: previous run still in flight", logx.String("task", name))
		g.publish(eventbus.EventRunSkipped, RunEvent{Task: name, Agent: def.Agent, Started: g.now(), Message: "previous run still in flight"})
		return
	}

	started := g.startRunLocked(def, ent)
	g.mu.Unlock()

	g.log.Info("run started", logx.String("task", name), logx.String("agent", def.Agent))
	g.publish(eventbus.EventRunStarted, RunEvent{Task: name, Agent: def.Agent, Started: started})
}

// startRunLocked launches one run of def under a fresh cancellation scope
// and tracks it in the ledger. For overlap-allowed tasks the entry is
// rearmed immediately; spaced tasks rearm on completion. Engine mutex must
// be held.
func (g *Engine) startRunLocked(def task.Definition, ent *entry) time.Time {
	g.runSeq++
	id := g.runSeq
	runCtx, cancel := context.WithCancel(g.sup.Context())
	r := &run{id: id, started: g.now(), cancel: cancel}
	ent.runs[id] = r

	if def.AllowOverlap {
		// Anchor the next interval at this run's start, not at the last
		// completion; otherwise a never-run task would fire again instantly.
		anchored := def
		anchored.LastRun = r.started
		g.armLocked(anchored)
	}

	p := runner.Payload{Task: def.Name, Agent: def.Agent, Message: def.Message}
	started := r.started
	g.sup.Go("run."+def.Name, func(context.Context) error {
		res, err := g.invoke(runCtx, p)
		cancel()
		g.complete(def.Name, id, started, res, err)
		return nil
	})
	return started
}

// invoke calls the external runner with a panic guard, so one bad runner
// cannot crash the engine or leak a ledger entry.
func (g *Engine) invoke(ctx context.Context, p runner.Payload) (res runner.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runner panic: %v", r)
			g.log.Error("runner panicked", logx.String("task", p.Task), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	return g.rn.Run(ctx, p)
}

// complete records one finished run: append a history record, update the
// task's last-run time, drop the run from the ledger, and rearm the task.
// Runs whose task was removed mid-flight are discarded.
func (g *Engine) complete(name string, id uint64, started time.Time, res runner.Result, err error) {
	ended := g.now()
	status := RunCompleted
	msg := strings.TrimSpace(res.Message)
	switch {
	case err != nil:
		status = RunFailed
		msg = err.Error()
	case !res.OK:
		status = RunFailed
		if msg == "" {
			msg = "runner reported failure"
		}
	}

	g.mu.Lock()
	ent := g.entries[name]
	if ent == nil {
		g.mu.Unlock()
		g.log.Debug("run finished after task removal; result discarded", logx.String("task", name))
		return
	}
	if _, ok := ent.runs[id]; !ok {
		g.mu.Unlock()
		return
	}
	delete(ent.runs, id)

	g.appendHistoryLocked(HistoryRecord{Task: name, Started: started, Ended: ended, Status: status, Message: msg})
	g.reg.SetLastRun(name, ended)

	if def, ok := g.reg.Get(name); ok && g.started && len(ent.runs) == 0 && ent.timer == nil {
		g.armLocked(def)
	}
	if len(ent.runs) == 0 && ent.timer == nil {
		delete(g.entries, name)
	}
	g.mu.Unlock()

	ev := RunEvent{Task: name, Started: started, Ended: ended, Status: string(status), Message: msg}
	if status == RunFailed {
		g.log.Warn("run failed", logx.String("task", name), logx.String("msg", msg), logx.Duration("dur", ended.Sub(started)))
		g.publish(eventbus.EventRunFailed, ev)
		return
	}
	g.log.Info("run completed", logx.String("task", name), logx.Duration("dur", ended.Sub(started)))
	g.publish(eventbus.EventRunCompleted, ev)
}

// checkOverrunLocked reports (and, when configured, cancels) runs that have
// exceeded the task's MaxRuntime. Engine mutex must be held.
func (g *Engine) checkOverrunLocked(name string, def task.Definition, ent *entry, now time.Time) {
	if def.MaxRuntime <= 0 {
		return
	}
	for _, r := range ent.runs {
		over := now.Sub(r.started)
		if over <= def.MaxRuntime {
			continue
		}
		if !r.overrun {
			r.overrun = true
			g.publish(eventbus.EventRunOverrun, RunEvent{Task: name, Agent: def.Agent, Started: r.started, Message: fmt.Sprintf("running for %s, max %s", over.Round(time.Second), def.MaxRuntime)})
		}
		if g.cfg.KillOverruns && !r.killed {
			r.killed = true
			r.cancel()
			g.log.Warn("run exceeded max runtime; cancelling", logx.String("task", name), logx.Duration("running_for", over), logx.Duration("max", def.MaxRuntime))
			continue
		}
		if g.overrunWarn.Allow() {
			g.log.Warn("run exceeded max runtime", logx.String("task", name), logx.Duration("running_for", over), logx.Duration("max", def.MaxRuntime))
		}
	}
}

// reconcile is the periodic sweep: it re-arms tasks that previously had no
// computable due time and checks in-flight runs against MaxRuntime.
func (g *Engine) reconcile() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	now := g.now()
	for _, def := range g.reg.List() {
		ent := g.entries[def.Name]
		if ent == nil {
			g.armLocked(def)
			continue
		}
		g.checkOverrunLocked(def.Name, def, ent, now)
	}
	g.mu.Unlock()
}

func (g *Engine) nextLocked(name string) time.Time {
	if ent := g.entries[name]; ent != nil {
		return ent.next
	}
	return time.Time{}
}

func (g *Engine) publish(typ string, ev RunEvent) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
