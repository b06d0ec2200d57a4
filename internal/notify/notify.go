package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"schedbot/internal/engine"
	"schedbot/internal/eventbus"
	logx "schedbot/pkg/logx"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// Config configures the Telegram alert sink.
type Config struct {
	Token  string
	ChatID int64
	// RatePerMin caps outgoing alerts (default 6).
	RatePerMin int
}

// sender is the slice of *tele.Bot we use; it exists so tests can stub the
// network.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier forwards failed and overrunning runs to a Telegram chat. It is a
// best-effort sink: alerts over the rate cap are dropped, not queued.
type Notifier struct {
	cfg Config
	bus eventbus.Bus
	log logx.Logger

	bot sender
	lim *rate.Limiter

	dropped uint64
}

func New(cfg Config, bus eventbus.Bus, log logx.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return newWithSender(cfg, bus, log, b), nil
}

func newWithSender(cfg Config, bus eventbus.Bus, log logx.Logger, s sender) *Notifier {
	per := cfg.RatePerMin
	if per <= 0 {
		per = 6
	}
	return &Notifier{
		cfg: cfg,
		bus: bus,
		log: log,
		bot: s,
		lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(per)), 2),
	}
}

// Run consumes run lifecycle events until ctx is done. Intended to be run
// under a supervisor.
func (n *Notifier) Run(ctx context.Context) error {
	if n.bus == nil {
		return nil
	}
	ch, unsub := n.bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			text := n.render(ev)
			if text == "" {
				continue
			}
			if !n.lim.Allow() {
				n.dropped++
				n.log.Debug("alert dropped (rate cap)",
					logx.String("type", ev.Type),
					logx.Uint64("dropped_total", n.dropped),
				)
				continue
			}
			n.send(text)
		}
	}
}

func (n *Notifier) render(ev eventbus.Event) string {
	re, ok := ev.Data.(engine.RunEvent)
	if !ok {
		return ""
	}
	switch ev.Type {
	case eventbus.EventRunFailed:
		msg := re.Message
		if msg == "" {
			msg = "no details"
		}
		return fmt.Sprintf("❌ task %q failed: %s", re.Task, msg)
	case eventbus.EventRunOverrun:
		running := "unknown"
		if !re.Started.IsZero() {
			running = time.Since(re.Started).Round(time.Second).String()
		}
		return fmt.Sprintf("⏱ task %q exceeded its max runtime (running %s)", re.Task, running)
	default:
		return ""
	}
}

func (n *Notifier) send(text string) {
	_, err := n.bot.Send(tele.ChatID(n.cfg.ChatID), text)
	if err != nil {
		n.log.Warn("alert send failed", logx.Any("err", err))
	}
}
