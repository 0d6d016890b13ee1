// Package tdl runs the tdl chat-export CLI as a subprocess.
package tdl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/config"
	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/ports/adapter"
	"telegram-insight-agent/internal/infra/metrics"
)

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 300 * time.Second

var _ adapter.ToolRunner = (*Runner)(nil)

// Runner executes the tool binary with TDL_CONFIG_DIR injected into its environment.
// It never retries; callers decide what a failure means.
type Runner struct {
	bin            string
	configDir      string
	defaultTimeout time.Duration
	log            *zerolog.Logger
}

func NewRunner(cfg config.TDLConfig, logger *zerolog.Logger) *Runner {
	bin := strings.TrimSpace(cfg.Bin)
	if bin == "" {
		bin = "tdl"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	l := logger.With().Str("component", "TDLRunner").Logger()
	return &Runner{bin: bin, configDir: cfg.ConfigDir, defaultTimeout: timeout, log: &l}
}

// Run starts the tool with args and waits at most timeout (the runner default when <= 0).
// Errors are *domain.ExecutionTimeoutError, *domain.ExecutionFailedError or *domain.OutputParseError.
func (r *Runner) Run(ctx context.Context, args []string, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	command := commandLabel(args)
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.bin, args...)
	cmd.Env = append(os.Environ(), "TDL_CONFIG_DIR="+r.configDir)
	// Grandchildren may keep the pipes open after the kill.
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			metrics.ObserveToolExec(command, "timeout", elapsed)
			r.log.Warn().Strs("args", args).Dur("timeout", timeout).Msg("tdl command timed out")
			return nil, &domain.ExecutionTimeoutError{Args: args, Timeout: timeout}
		}
		if ctx.Err() != nil {
			metrics.ObserveToolExec(command, "cancelled", elapsed)
			return nil, fmt.Errorf("tdl %s: %w", command, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			metrics.ObserveToolExec(command, "failed", elapsed)
			return nil, &domain.ExecutionFailedError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		metrics.ObserveToolExec(command, "failed", elapsed)
		return nil, fmt.Errorf("start tdl: %w", err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		metrics.ObserveToolExec(command, "ok", elapsed)
		return nil, nil
	}
	var parsed any
	if err := json.Unmarshal(out, &parsed); err != nil {
		metrics.ObserveToolExec(command, "parse_error", elapsed)
		r.log.Error().Str("output", truncate(stdout.String(), 512)).Msg("failed to parse tdl output")
		return nil, &domain.OutputParseError{RawOutput: stdout.String(), Err: err}
	}
	metrics.ObserveToolExec(command, "ok", elapsed)
	return parsed, nil
}

// commandLabel turns ["chat", "export", "-c", ...] into "chat_export" for metric labels.
func commandLabel(args []string) string {
	parts := make([]string, 0, 2)
	for _, a := range args {
		if strings.HasPrefix(a, "-") || len(parts) == 2 {
			break
		}
		parts = append(parts, a)
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "_")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
