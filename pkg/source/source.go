// Package source obtains the rule-file tree that installs and updates read
// from. A provider yields a local directory snapshot plus a cleanup function
// that must run on every exit path.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"rulesync/pkg/execs"
)

// ErrSourceUnavailable is returned when the rule-file tree cannot be
// obtained, whether the location is missing or the clone failed.
var ErrSourceUnavailable = errors.New("rule source unavailable")

// Provider yields a directory containing the rule-file tree. The returned
// cleanup must always be called; for temporary snapshots it removes the
// working copy.
type Provider interface {
	Fetch(ctx context.Context) (dir string, cleanup func(), err error)
}

// New returns a provider for location: a [Git] provider for git URLs, a
// [Dir] provider for everything else.
func New(location string) Provider {
	if IsGitURL(location) {
		return Git{URL: location}
	}

	return Dir{Path: location}
}

// IsGitURL reports whether location looks like a git remote rather than a
// local path.
func IsGitURL(location string) bool {
	for _, prefix := range []string{"http://", "https://", "ssh://", "git://", "git@"} {
		if strings.HasPrefix(location, prefix) {
			return true
		}
	}

	return strings.HasSuffix(location, ".git")
}

// Dir serves rule files from a directory already on disk.
type Dir struct {
	Path string
}

func (d Dir) Fetch(_ context.Context) (string, func(), error) {
	info, err := os.Stat(d.Path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, d.Path, err)
	}

	if !info.IsDir() {
		return "", nil, fmt.Errorf("%w: %s is not a directory", ErrSourceUnavailable, d.Path)
	}

	return d.Path, func() {}, nil
}

// Git serves rule files from a shallow clone of a remote repository. The
// clone lives in a temporary directory which the cleanup removes.
type Git struct {
	URL string
}

func (g Git) Fetch(ctx context.Context) (string, func(), error) {
	tmp, err := os.MkdirTemp("", "rulesync-src-*")
	if err != nil {
		return "", nil, fmt.Errorf("create working copy: %w", err)
	}

	cleanup := func() {
		rmErr := os.RemoveAll(tmp)
		if rmErr != nil {
			slog.Warn("remove working copy",
				slog.String("path", tmp),
				slog.Any("error", rmErr),
			)
		}
	}

	cmd := execs.New(os.Environ(), "git", "clone", "--depth", "1", g.URL, tmp)

	result, err := cmd.Exec(ctx, "")
	if err != nil {
		if result != nil && result.Stderr != "" {
			slog.Debug("git clone output", slog.String("stderr", result.Stderr))
		}

		cleanup()

		return "", nil, fmt.Errorf("%w: clone %s: %w", ErrSourceUnavailable, g.URL, err)
	}

	return tmp, cleanup, nil
}
