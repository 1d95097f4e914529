// Package notify runs the optional post-sync notification command.
package notify

import (
	"context"
	"log/slog"
	"os"

	"rulesync/pkg/config"
	"rulesync/pkg/execs"
)

// Notifier runs a configured command after a successful sync. A nil or
// unconfigured notifier does nothing.
type Notifier struct {
	cmd *execs.Command
}

// New creates a [Notifier] from the notify configuration. cfg may be nil.
func New(cfg *config.Notify) *Notifier {
	if cfg == nil || cfg.Command == "" {
		return &Notifier{}
	}

	cmd := execs.New(os.Environ(), cfg.Command, cfg.Args...)

	return &Notifier{cmd: &cmd}
}

// Notify runs the notification command. Failures are logged and swallowed;
// a notification must never fail the sync that triggered it.
func (n *Notifier) Notify(ctx context.Context) {
	if n.cmd == nil {
		return
	}

	_, err := n.cmd.Exec(ctx, "")
	if err != nil {
		slog.Warn("notification command failed",
			slog.String("command", n.cmd.String()),
			slog.Any("error", err),
		)
	}
}
