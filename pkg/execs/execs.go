// Package execs runs the external commands rulesync depends on: git for
// remote rule sources and the optional notification command.
package execs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rulesync/pkg/log"
)

var (
	// ErrCommandExecution is returned when command execution fails.
	ErrCommandExecution = errors.New("run")

	// ErrEmptyCommand is returned when a command is empty.
	ErrEmptyCommand = errors.New("empty command")
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout string
	Stderr string
}

// Command is an external command plus the environment it runs with. The
// caller environment is filtered down to the variables subprocesses need;
// git additionally gets its own and ssh's variables passed through.
type Command struct {
	baseEnv map[string]string
	tracer  trace.Tracer

	Name string
	Args []string
}

var (
	essentialVars     = []string{"PATH", "HOME", "USER", "TERM", "COLORTERM"}
	essentialPrefixes = []string{"GIT_", "SSH_"}
)

// New creates a [Command] inheriting from baseEnv, which usually comes from
// [os.Environ].
func New(baseEnv []string, name string, args ...string) Command {
	c := Command{
		tracer: otel.Tracer("execs"),
		Name:   name,
		Args:   args,
	}
	c.SetBaseEnv(baseEnv)

	return c
}

// SetBaseEnv replaces the inherited environment.
func (c *Command) SetBaseEnv(baseEnv []string) {
	c.baseEnv = make(map[string]string, len(baseEnv))
	for _, kv := range baseEnv {
		if key, value, ok := strings.Cut(kv, "="); ok {
			c.baseEnv[key] = value
		}
	}
}

// Env returns the filtered environment for execution.
func (c Command) Env() []string {
	env := make([]string, 0, len(essentialVars))

	for key, value := range c.baseEnv {
		if slices.Contains(essentialVars, key) || hasAnyPrefix(key, essentialPrefixes) {
			env = append(env, key+"="+value)
		}
	}

	slices.Sort(env)

	return env
}

// Exec runs the command in dir, capturing stdout and stderr. Output is
// returned alongside the error when the command itself produced any.
func (c Command) Exec(ctx context.Context, dir string) (*Result, error) {
	if c.Name == "" {
		return nil, ErrEmptyCommand
	}

	ctx, span := c.tracer.Start(ctx, "exec", trace.WithAttributes(
		attribute.String("command", c.String()),
		attribute.String("dir", dir),
	))
	defer span.End()

	logger := log.WithContext(ctx).With(
		slog.String("command", c.String()),
		slog.String("dir", dir),
	)

	start := time.Now()

	//nolint:gosec // G204: command and args come from trusted configuration.
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = dir
	cmd.Env = c.Env()

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		logger.DebugContext(ctx, "command failed",
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)

		if stdout.Len() > 0 || stderr.Len() > 0 {
			return result, fmt.Errorf("%w: %w", ErrCommandExecution, err)
		}

		return nil, fmt.Errorf("%w: %w", ErrCommandExecution, err)
	}

	logger.DebugContext(ctx, "command executed",
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}
