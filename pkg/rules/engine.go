package rules

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aymanbagabas/go-udiff"

	gitignore "github.com/sabhiram/go-gitignore"

	"rulesync/pkg/checksum"
	"rulesync/pkg/detect"
	"rulesync/pkg/index"
	"rulesync/pkg/log"
)

const (
	reasonUntracked  = "untracked file, not managed by rulesync"
	reasonLocalEdits = "local edits preserved"
	reasonForced     = "overwrite forced"
)

// Option configures an [Engine].
type Option func(*Engine)

// WithForce overwrites locally modified and untracked files, and allows
// reinstalling over an existing installation.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// WithDryRun classifies and reports without writing anything.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

// WithDetectDir sets the directory scanned for ecosystem markers. Defaults
// to the installation root; global installs detect against the project the
// command runs in.
func WithDetectDir(dir string) Option {
	return func(e *Engine) {
		e.detectDir = dir
	}
}

// WithIgnore excludes source files matching the given gitignore-style
// patterns.
func WithIgnore(patterns []string) Option {
	return func(e *Engine) {
		if len(patterns) > 0 {
			e.ignore = gitignore.CompileIgnoreLines(patterns...)
		}
	}
}

// Engine copies rule files from a source tree into an [Installation],
// deciding per file whether to add, update, overwrite, or skip. All
// classification is read-only; writes happen separately so a dry run can
// produce identical reports.
type Engine struct {
	ignore    *gitignore.GitIgnore
	inst      Installation
	detectDir string
	force     bool
	dryRun    bool
}

// NewEngine creates an [Engine] for the given installation.
func NewEngine(inst Installation, opts ...Option) *Engine {
	e := &Engine{
		inst:      inst,
		detectDir: inst.Root,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Install performs a fresh install: the general category plus every
// detected category is copied unconditionally, then the digest store is
// written from the fingerprints of every file just written. An existing
// installation fails with [ErrAlreadyInstalled] unless forced.
func (e *Engine) Install(ctx context.Context, srcDir string) (*Summary, error) {
	logger := log.WithContext(ctx)

	if e.inst.Exists() && !e.force {
		return nil, ErrAlreadyInstalled
	}

	categories := e.detectCategories(logger)

	var (
		summary Summary
		written = map[string]string{}
	)

	for _, category := range categories {
		files, err := e.sourceFiles(srcDir, category)
		if err != nil {
			return nil, err
		}

		for _, f := range files {
			data, err := os.ReadFile(f.path) //nolint:gosec // G304: Potential file inclusion via variable.
			if err != nil {
				return nil, fmt.Errorf("read source file %s: %w", f.rel, err)
			}

			if !e.dryRun {
				err = writeFile(e.destPath(f.rel), data)
				if err != nil {
					return nil, err
				}
			}

			written[f.rel] = checksum.Sum(data)
			summary.record(ActionAdded, int64(len(data)))
			logger.Info("added", slog.String("path", f.rel))
		}
	}

	if !e.dryRun {
		content, err := index.Generate(e.inst.RulesDir, categories)
		if err != nil {
			return nil, err
		}

		err = writeFile(e.inst.IndexPath, content)
		if err != nil {
			return nil, err
		}

		written[index.FileName] = checksum.Sum(content)

		err = checksum.Save(e.inst.StorePath(), written)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("generated index", slog.String("path", e.inst.IndexPath))

	return &summary, nil
}

// Update reconciles an existing installation against the source tree. It
// processes the union of the general category, the currently detected
// categories, and every category recorded in the digest store; detection
// only ever adds categories. A file is silently replaced only when its
// on-disk content matches the digest recorded at the previous sync.
func (e *Engine) Update(ctx context.Context, srcDir string) (*Summary, error) {
	logger := log.WithContext(ctx)

	if !e.inst.Exists() {
		return nil, ErrNotInstalled
	}

	stored, err := checksum.Load(e.inst.StorePath())
	if err != nil {
		return nil, err
	}

	categories := e.updateCategories(logger, stored)

	var (
		summary Summary
		written = map[string]string{}
	)

	for _, category := range categories {
		files, err := e.sourceFiles(srcDir, category)
		if err != nil {
			return nil, err
		}

		for _, f := range files {
			data, err := os.ReadFile(f.path) //nolint:gosec // G304: Potential file inclusion via variable.
			if err != nil {
				return nil, fmt.Errorf("read source file %s: %w", f.rel, err)
			}

			action, reason, current, err := e.classify(f.rel, data, stored)
			if err != nil {
				return nil, err
			}

			switch action {
			case ActionAdded, ActionUpdated, ActionOverwritten:
				if !e.dryRun {
					err = writeFile(e.destPath(f.rel), data)
					if err != nil {
						return nil, err
					}
				}

				written[f.rel] = checksum.Sum(data)

			case ActionSkipped:
				if reason == reasonLocalEdits {
					logger.Debug("local changes",
						slog.String("path", f.rel),
						slog.String("diff", udiff.Unified(f.rel+" (installed)", f.rel+" (source)", string(current), string(data))),
					)
				}

			case ActionUnchanged:
			}

			summary.record(action, int64(len(data)))
			reportFile(logger, action, f.rel, reason)
		}
	}

	e.syncIndex(logger, categories, stored, written)

	if !e.dryRun {
		sums, err := e.snapshot(categories, stored, written)
		if err != nil {
			return nil, err
		}

		err = checksum.Save(e.inst.StorePath(), sums)
		if err != nil {
			return nil, err
		}
	}

	return &summary, nil
}

// classify decides the per-file action without touching the filesystem
// beyond reads. It returns the destination's current content for diff
// reporting.
func (e *Engine) classify(relPath string, srcData []byte, stored map[string]string) (Action, string, []byte, error) {
	current, err := os.ReadFile(e.destPath(relPath)) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		if os.IsNotExist(err) {
			return ActionAdded, "", nil, nil
		}

		return ActionSkipped, "", nil, fmt.Errorf("read installed file %s: %w", relPath, err)
	}

	recorded, tracked := stored[relPath]
	if !tracked {
		// Present on disk but never written by the engine: externally
		// managed until an overwrite is forced.
		if e.force {
			return ActionOverwritten, reasonForced, current, nil
		}

		return ActionSkipped, reasonUntracked, current, nil
	}

	if checksum.Sum(current) == recorded {
		if bytes.Equal(current, srcData) {
			return ActionUnchanged, "", current, nil
		}

		return ActionUpdated, "", current, nil
	}

	if e.force {
		return ActionOverwritten, reasonForced, current, nil
	}

	return ActionSkipped, reasonLocalEdits, current, nil
}

// syncIndex regenerates the index document, gated by the same modification
// check as any other file: a hand-edited index is preserved unless forced.
func (e *Engine) syncIndex(logger *slog.Logger, categories []string, stored, written map[string]string) {
	current, err := os.ReadFile(e.inst.IndexPath)

	regenerate := true
	if err == nil && !e.force {
		recorded, tracked := stored[index.FileName]
		if !tracked || checksum.Sum(current) != recorded {
			regenerate = false
		}
	}

	if !regenerate {
		logger.Info("skipped index, local edits preserved", slog.String("path", e.inst.IndexPath))

		return
	}

	if !e.dryRun {
		content, genErr := index.Generate(e.inst.RulesDir, categories)
		if genErr != nil {
			logger.Warn("generate index", slog.Any("error", genErr))

			return
		}

		genErr = writeFile(e.inst.IndexPath, content)
		if genErr != nil {
			logger.Warn("write index", slog.Any("error", genErr))

			return
		}

		written[index.FileName] = checksum.Sum(content)
	}

	logger.Info("regenerated index", slog.String("path", e.inst.IndexPath))
}

// snapshot rebuilds the digest store from the current file set. Files the
// engine wrote get their new digest; skipped files keep the digest of the
// last engine write, so local edits stay protected on the next run;
// untracked files stay untracked.
func (e *Engine) snapshot(categories []string, stored, written map[string]string) (map[string]string, error) {
	sums := map[string]string{}

	for _, category := range categories {
		dir := filepath.Join(e.inst.RulesDir, category)

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, fmt.Errorf("read category directory: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}

			rel := path.Join(category, entry.Name())

			if digest, ok := written[rel]; ok {
				sums[rel] = digest

				continue
			}

			recorded, tracked := stored[rel]
			if !tracked {
				continue
			}

			currentDigest, err := checksum.SumFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}

			if currentDigest == recorded {
				sums[rel] = currentDigest
			} else {
				sums[rel] = recorded
			}
		}
	}

	if digest, ok := written[index.FileName]; ok {
		sums[index.FileName] = digest
	} else if recorded, tracked := stored[index.FileName]; tracked {
		_, err := os.Stat(e.inst.IndexPath)
		if err == nil {
			sums[index.FileName] = recorded
		}
	}

	return sums, nil
}

// detectCategories returns general plus the detected categories, in
// detector order.
func (e *Engine) detectCategories(logger *slog.Logger) []string {
	categories := []string{detect.CategoryGeneral}

	for _, d := range detect.Detect(e.detectDir) {
		logger.Info("detected ecosystem",
			slog.String("language", d.Label),
			slog.String("category", d.Category),
		)

		categories = append(categories, d.Category)
	}

	return categories
}

// updateCategories returns the ordered union of general, the detected
// categories, and the categories recorded in the digest store. Detection is
// additive only: a category stays installed after its marker disappears.
func (e *Engine) updateCategories(logger *slog.Logger, stored map[string]string) []string {
	categories := e.detectCategories(logger)

	seen := map[string]bool{}
	for _, c := range categories {
		seen[c] = true
	}

	var recorded []string

	for rel := range stored {
		category, _, ok := strings.Cut(rel, "/")
		if ok && !seen[category] {
			recorded = append(recorded, category)
			seen[category] = true
		}
	}

	sort.Strings(recorded)

	return append(categories, recorded...)
}

type sourceFile struct {
	rel  string // store key, forward slashes
	path string
}

// sourceFiles lists the rule files the source tree provides for a category.
// A category the source does not carry yields no files.
func (e *Engine) sourceFiles(srcDir, category string) ([]sourceFile, error) {
	dir := filepath.Join(srcDir, category)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read source category %s: %w", category, err)
	}

	var files []sourceFile

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		rel := path.Join(category, entry.Name())

		if e.ignore != nil && e.ignore.MatchesPath(rel) {
			slog.Debug("ignored source file", slog.String("path", rel))

			continue
		}

		files = append(files, sourceFile{rel: rel, path: filepath.Join(dir, entry.Name())})
	}

	return files, nil
}

func (e *Engine) destPath(relPath string) string {
	return filepath.Join(e.inst.RulesDir, filepath.FromSlash(relPath))
}

func reportFile(logger *slog.Logger, action Action, relPath, reason string) {
	attrs := []any{slog.String("path", relPath)}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}

	if action == ActionUnchanged {
		logger.Debug(action.String(), attrs...)

		return
	}

	logger.Info(action.String(), attrs...)
}

func writeFile(dest string, data []byte) error {
	err := os.MkdirAll(filepath.Dir(dest), 0o750)
	if err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	err = os.WriteFile(dest, data, 0o644) //nolint:gosec // G306: rule files are project documentation.
	if err != nil {
		return fmt.Errorf("write file %s: %w", dest, err)
	}

	return nil
}
