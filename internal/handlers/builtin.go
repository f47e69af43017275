// Package handlers provides the handlers the jobtick binary ships with.
// Library users register their own; these cover the common operational
// cases of logging a heartbeat and running a shell command.
package handlers

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"jobtick/internal/registry"
)

// RegisterBuiltin wires the built-in handlers into a registry.
func RegisterBuiltin(reg *registry.Registry, log zerolog.Logger) error {
	if err := reg.Register("noop", Noop); err != nil {
		return err
	}
	if err := reg.Register("log", Log(log)); err != nil {
		return err
	}
	return reg.Register("shell", Shell)
}

// Noop does nothing. Useful for exercising the scheduling machinery.
func Noop(context.Context, registry.Run) (string, error) {
	return "ok", nil
}

// Log writes the configured message to the log.
func Log(log zerolog.Logger) registry.HandlerFunc {
	return func(_ context.Context, run registry.Run) (string, error) {
		msg, _ := run.Config["message"].(string)
		if msg == "" {
			msg = "tick"
		}
		log.Info().Str("task", run.TaskID).Msg(msg)
		return msg, nil
	}
}

// Shell runs the command named in the job config. The handler is bounded
// only by the lease: a command must be idempotent or finish well inside
// the lease duration.
func Shell(ctx context.Context, run registry.Run) (string, error) {
	command, _ := run.Config["command"].(string)
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("shell handler requires a 'command' config field")
	}

	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	summary := strings.TrimSpace(string(out))
	if err != nil {
		return summary, fmt.Errorf("command failed: %w", err)
	}
	return summary, nil
}
