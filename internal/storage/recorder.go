package storage

import (
	"context"
	"time"

	"schedbot/internal/engine"
	"schedbot/internal/eventbus"
	logx "schedbot/pkg/logx"
)

// Recorder mirrors finished runs from the event bus into a Store. It is the
// only writer of the run log; the engine stays unaware of persistence.
type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, bus: bus, log: log}
}

// Run consumes run lifecycle events until ctx is done. Intended to be run
// under a supervisor.
func (r *Recorder) Run(ctx context.Context) error {
	if r.store == nil || r.bus == nil {
		return nil
	}
	ch, unsub := r.bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if ev.Type != eventbus.EventRunCompleted && ev.Type != eventbus.EventRunFailed {
				continue
			}
			re, ok := ev.Data.(engine.RunEvent)
			if !ok {
				continue
			}
			rec := RunRecord{
				Task:    re.Task,
				Started: re.Started,
				Ended:   re.Ended,
				Status:  re.Status,
				Message: re.Message,
			}
			if !re.Ended.IsZero() && !re.Started.IsZero() {
				rec.TookMS = re.Ended.Sub(re.Started).Milliseconds()
			}

			wctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := r.store.AppendRun(wctx, rec)
			cancel()
			if err != nil {
				r.log.Warn("run log append failed",
					logx.String("task", rec.Task),
					logx.Any("err", err),
				)
			}
		}
	}
}
