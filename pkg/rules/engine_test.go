package rules_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulesync/pkg/checksum"
	"rulesync/pkg/index"
	"rulesync/pkg/rules"
)

func write(t *testing.T, root string, rel, content string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func read(t *testing.T, root, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)

	return string(data)
}

// newSource builds a rule source tree with general, go, and python
// categories.
func newSource(t *testing.T) string {
	t.Helper()

	src := t.TempDir()
	write(t, src, "general/style.md", "# Code style\n\nBe boring.\n")
	write(t, src, "general/commits.md", "# Commit messages\n")
	write(t, src, "go/testing.md", "# Go testing\n")
	write(t, src, "python/venv.md", "# Virtualenvs\n")
	write(t, src, "rust/clippy.md", "# Clippy\n")

	return src
}

// snapshotTree captures every file under root, byte for byte.
func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()

	tree := map[string]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)

		data, err := os.ReadFile(path) //nolint:gosec // G304: test fixture.
		require.NoError(t, err)

		tree[filepath.ToSlash(rel)] = string(data)

		return nil
	})
	require.NoError(t, err)

	return tree
}

func install(t *testing.T, target, src string, opts ...rules.Option) *rules.Summary {
	t.Helper()

	eng := rules.NewEngine(rules.NewInstallation(target), opts...)

	summary, err := eng.Install(context.Background(), src)
	require.NoError(t, err)

	return summary
}

func update(t *testing.T, target, src string, opts ...rules.Option) *rules.Summary {
	t.Helper()

	eng := rules.NewEngine(rules.NewInstallation(target), opts...)

	summary, err := eng.Update(context.Background(), src)
	require.NoError(t, err)

	return summary
}

func TestInstallCopiesDetectedCategories(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()
	write(t, target, "go.mod", "module example\n")
	write(t, target, "pyproject.toml", "[project]\n")

	summary := install(t, target, src)

	// general + both detected ecosystems, not rust.
	assert.Equal(t, "# Code style\n\nBe boring.\n", read(t, target, ".rules/general/style.md"))
	assert.FileExists(t, filepath.Join(target, ".rules/go/testing.md"))
	assert.FileExists(t, filepath.Join(target, ".rules/python/venv.md"))
	assert.NoFileExists(t, filepath.Join(target, ".rules/rust/clippy.md"))

	assert.Equal(t, 4, summary.Added)
	assert.Zero(t, summary.Updated)
	assert.Zero(t, summary.Skipped)

	// Index at the installation root, listing installed files.
	doc := read(t, target, index.FileName)
	assert.Contains(t, doc, "general/style.md")
	assert.Contains(t, doc, "go/testing.md")

	// Store tracks every written file plus the index itself.
	sums, err := checksum.Load(filepath.Join(target, ".rules", checksum.StoreName))
	require.NoError(t, err)
	assert.Len(t, sums, 5)
	assert.Contains(t, sums, index.FileName)
	assert.Equal(t, checksum.Sum([]byte("# Go testing\n")), sums["go/testing.md"])
}

func TestInstallNoMarkers(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()

	summary := install(t, target, src)

	assert.Equal(t, 2, summary.Added)
	assert.FileExists(t, filepath.Join(target, ".rules/general/style.md"))
	assert.NoFileExists(t, filepath.Join(target, ".rules/go/testing.md"))
}

func TestInstallAlreadyInstalled(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()

	install(t, target, src)

	eng := rules.NewEngine(rules.NewInstallation(target))
	_, err := eng.Install(context.Background(), src)
	require.ErrorIs(t, err, rules.ErrAlreadyInstalled)

	// Reinstall is allowed when forced.
	install(t, target, src, rules.WithForce(true))
}

func TestInstallDryRun(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()
	write(t, target, "go.mod", "module example\n")

	before := snapshotTree(t, target)

	summary := install(t, target, src, rules.WithDryRun(true))

	assert.Equal(t, 3, summary.Added)
	assert.Equal(t, before, snapshotTree(t, target), "dry run must not touch the filesystem")
}

func TestInstallIgnorePatterns(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	write(t, src, "general/README.md", "# Readme\n")
	target := t.TempDir()

	install(t, target, src, rules.WithIgnore([]string{"README.md"}))

	assert.NoFileExists(t, filepath.Join(target, ".rules/general/README.md"))
	assert.FileExists(t, filepath.Join(target, ".rules/general/style.md"))
}

func TestUpdateNotInstalled(t *testing.T) {
	t.Parallel()

	eng := rules.NewEngine(rules.NewInstallation(t.TempDir()))
	_, err := eng.Update(context.Background(), newSource(t))
	require.ErrorIs(t, err, rules.ErrNotInstalled)
}

func TestUpdateIdempotent(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()
	write(t, target, "go.mod", "module example\n")

	install(t, target, src)

	// No upstream changes: nothing to do, twice.
	for range 2 {
		summary := update(t, target, src)
		assert.Zero(t, summary.Added)
		assert.Zero(t, summary.Updated)
		assert.Zero(t, summary.Skipped)
	}
}

func TestUpdatePropagatesUpstreamChanges(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()
	write(t, target, "go.mod", "module example\n")

	install(t, target, src)

	write(t, src, "go/testing.md", "# Go testing\n\nNew guidance.\n")

	summary := update(t, target, src)
	assert.Zero(t, summary.Added)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, "# Go testing\n\nNew guidance.\n", read(t, target, ".rules/go/testing.md"))

	// Recorded digest now matches the new content.
	sums, err := checksum.Load(filepath.Join(target, ".rules", checksum.StoreName))
	require.NoError(t, err)
	assert.Equal(t, checksum.Sum([]byte("# Go testing\n\nNew guidance.\n")), sums["go/testing.md"])

	// And the run after that is a no-op again.
	summary = update(t, target, src)
	assert.Zero(t, summary.Added)
	assert.Zero(t, summary.Updated)
}

func TestUpdateProtectsLocalEdits(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()

	install(t, target, src)

	// Hand-edit an installed file, then change it upstream too.
	write(t, target, ".rules/general/style.md", "# My own style\n")
	write(t, src, "general/style.md", "# Code style v2\n")

	summary := update(t, target, src)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, "# My own style\n", read(t, target, ".rules/general/style.md"))

	// Protection must survive the store rewrite: a second update still
	// skips, because the recorded digest is still the last engine write.
	summary = update(t, target, src)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, "# My own style\n", read(t, target, ".rules/general/style.md"))
}

func TestUpdateForceOverwritesLocalEdits(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()

	install(t, target, src)

	write(t, target, ".rules/general/style.md", "# My own style\n")
	write(t, src, "general/style.md", "# Code style v2\n")

	summary := update(t, target, src, rules.WithForce(true))
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, "# Code style v2\n", read(t, target, ".rules/general/style.md"))

	sums, err := checksum.Load(filepath.Join(target, ".rules", checksum.StoreName))
	require.NoError(t, err)
	assert.Equal(t, checksum.Sum([]byte("# Code style v2\n")), sums["general/style.md"])
}

func TestUpdateAddsNewUpstreamFiles(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()

	install(t, target, src)

	write(t, src, "general/security.md", "# Security\n")

	summary := update(t, target, src)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, "# Security\n", read(t, target, ".rules/general/security.md"))
}

func TestUpdateSkipsUntrackedFiles(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()

	install(t, target, src)

	// A manually added file that collides with a new upstream file.
	write(t, target, ".rules/general/security.md", "# Mine\n")
	write(t, src, "general/security.md", "# Security\n")

	summary := update(t, target, src)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, "# Mine\n", read(t, target, ".rules/general/security.md"))

	// The file stays untracked: still skipped on the next run.
	sums, err := checksum.Load(filepath.Join(target, ".rules", checksum.StoreName))
	require.NoError(t, err)
	assert.NotContains(t, sums, "general/security.md")

	// Forcing resolves the collision in favor of the source.
	summary = update(t, target, src, rules.WithForce(true))
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, "# Security\n", read(t, target, ".rules/general/security.md"))
}

func TestUpdateCategoriesAreAdditive(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()
	write(t, target, "go.mod", "module example\n")

	install(t, target, src)

	// The marker disappears, but the installed category must keep
	// receiving updates.
	require.NoError(t, os.Remove(filepath.Join(target, "go.mod")))
	write(t, src, "go/testing.md", "# Go testing v2\n")

	summary := update(t, target, src)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, "# Go testing v2\n", read(t, target, ".rules/go/testing.md"))
}

func TestUpdatePicksUpNewlyDetectedCategory(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()

	install(t, target, src)

	write(t, target, "Cargo.toml", "[package]\n")

	summary := update(t, target, src)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, "# Clippy\n", read(t, target, ".rules/rust/clippy.md"))
}

func TestUpdateDryRunPurity(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()
	write(t, target, "go.mod", "module example\n")

	install(t, target, src)

	// Upstream changes, a local edit, and a brand-new file: every
	// classification is exercised, nothing may be written.
	write(t, src, "go/testing.md", "# Go testing v2\n")
	write(t, src, "general/security.md", "# Security\n")
	write(t, target, ".rules/general/style.md", "# My own style\n")

	before := snapshotTree(t, target)

	summary := update(t, target, src, rules.WithDryRun(true))
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)

	assert.Equal(t, before, snapshotTree(t, target), "dry run must not touch the filesystem")

	// The real run then reports the same classification.
	applied := update(t, target, src)
	assert.Equal(t, summary.Added, applied.Added)
	assert.Equal(t, summary.Updated, applied.Updated)
	assert.Equal(t, summary.Skipped, applied.Skipped)
}

func TestUpdateRegeneratesIndex(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()

	install(t, target, src)

	write(t, src, "general/security.md", "# Security\n")
	update(t, target, src)

	assert.Contains(t, read(t, target, index.FileName), "general/security.md")
}

func TestUpdatePreservesHandEditedIndex(t *testing.T) {
	t.Parallel()

	src := newSource(t)
	target := t.TempDir()

	install(t, target, src)

	write(t, target, index.FileName, "# My notes\n")
	write(t, src, "general/security.md", "# Security\n")

	update(t, target, src)
	assert.Equal(t, "# My notes\n", read(t, target, index.FileName))

	// Forcing regenerates it.
	update(t, target, src, rules.WithForce(true))
	assert.Contains(t, read(t, target, index.FileName), "general/security.md")
}

func TestInstallationExists(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	inst := rules.NewInstallation(target)

	assert.False(t, inst.Exists())

	write(t, target, ".rules/"+checksum.StoreName, "")
	assert.True(t, inst.Exists())
}
