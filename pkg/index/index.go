// Package index renders the generated summary document listing every
// installed rule file.
package index

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rulesync/pkg/detect"
)

// FileName is the generated document's name at the installation root. Its
// digest is tracked in the checksum store under the same key.
const FileName = "RULES.md"

const header = `# Project Rules

This file is generated by rulesync. It lists the rule files installed under
the rules directory. Local edits to this file stop automatic regeneration.
`

// Generate renders the index for the given rules directory. Categories are
// emitted in the given order; the general category is expected first. A
// category with no installed files is omitted.
func Generate(rulesDir string, categories []string) ([]byte, error) {
	var b bytes.Buffer

	b.WriteString(header)

	for _, category := range categories {
		dir := filepath.Join(rulesDir, category)

		names, err := listRuleFiles(dir)
		if err != nil {
			return nil, err
		}

		if len(names) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n## %s\n\n", detect.LabelFor(category))

		for _, name := range names {
			desc := describeFile(filepath.Join(dir, name))
			fmt.Fprintf(&b, "- `%s/%s`: %s\n", category, name, desc)
		}
	}

	return b.Bytes(), nil
}

// listRuleFiles returns the sorted markdown file names directly under dir.
// A missing category directory yields no files.
func listRuleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read category directory: %w", err)
	}

	var names []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	return names, nil
}

// describeFile returns a short description for a rule file: its first
// top-level heading, or the base name when no heading is found.
func describeFile(path string) string {
	fallback := strings.TrimSuffix(filepath.Base(path), ".md")

	f, err := os.Open(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return fallback
	}
	defer f.Close() //nolint:errcheck // Read-only descriptor.

	if heading, ok := firstHeading(bufio.NewScanner(f)); ok {
		return heading
	}

	return fallback
}

// firstHeading scans for the first top-level heading, skipping a leading
// front matter block delimited by "---" lines. Two states: outside the
// block, scanning for a heading; inside, scanning for the closing fence.
func firstHeading(sc *bufio.Scanner) (string, bool) {
	var (
		inFrontMatter bool
		started       bool
	)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if inFrontMatter {
			if line == "---" {
				inFrontMatter = false
			}

			continue
		}

		if !started && line == "---" {
			inFrontMatter = true
			started = true

			continue
		}

		if line != "" {
			started = true
		}

		if after, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(after), true
		}
	}

	return "", false
}
