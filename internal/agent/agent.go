package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"schedbot/internal/runner"
	logx "schedbot/pkg/logx"
)

// maxOutput bounds how much runner output is kept for history and alerts.
const maxOutput = 4 * 1024

// Config configures the subprocess runner.
type Config struct {
	Command string
	Args    []string
	Workdir string
}

// Runner invokes an external command once per task run. The task's message
// is written to stdin; task and agent names are passed via environment so
// the command can dispatch without argument parsing.
//
// Exit status 0 means success; anything else is a failed run with the
// command's combined output as the failure message.
type Runner struct {
	cfg Config
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Runner, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("agent.command is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{cfg: cfg, log: log}, nil
}

func (r *Runner) Run(ctx context.Context, p runner.Payload) (runner.Result, error) {
	cmd := exec.CommandContext(ctx, r.cfg.Command, r.cfg.Args...)
	cmd.Dir = r.cfg.Workdir
	cmd.Stdin = strings.NewReader(p.Message)
	cmd.Env = append(cmd.Environ(),
		"SCHEDBOT_TASK="+p.Task,
		"SCHEDBOT_AGENT="+p.Agent,
	)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	text := truncate(strings.TrimSpace(out.String()))

	if ctx.Err() != nil {
		// Cancellation wins over whatever exit status the kill produced.
		return runner.Result{}, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := text
			if msg == "" {
				msg = fmt.Sprintf("exit status %d", exitErr.ExitCode())
			}
			return runner.Result{OK: false, Message: msg}, nil
		}
		return runner.Result{}, err
	}
	return runner.Result{OK: true, Message: text}, nil
}

func truncate(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	return s[:maxOutput] + "… (truncated)"
}
