// Package detect maps marker files found in a project directory to the rule
// categories that apply to it.
package detect

import (
	"os"
	"path/filepath"
)

// CategoryGeneral is the category applied to every installation, independent
// of detection.
const CategoryGeneral = "general"

// MarkerRule associates a marker file name with a language and a rule
// category. Several markers may resolve to the same category.
type MarkerRule struct {
	// Marker is the file name whose presence signals the category.
	Marker string
	// Label is the human-readable language name.
	Label string
	// Category is the rule category key.
	Category string
}

// Detection is one detected (language, category) pair.
type Detection struct {
	Label    string
	Category string
}

// Rules is the static marker table. Order matters: detection results follow
// table order, and the first marker satisfying a category wins.
var Rules = []MarkerRule{
	{Marker: "go.mod", Label: "Go", Category: "go"},
	{Marker: "go.sum", Label: "Go", Category: "go"},
	{Marker: "Cargo.toml", Label: "Rust", Category: "rust"},
	{Marker: "package.json", Label: "JavaScript/TypeScript", Category: "node"},
	{Marker: "pnpm-lock.yaml", Label: "JavaScript/TypeScript", Category: "node"},
	{Marker: "yarn.lock", Label: "JavaScript/TypeScript", Category: "node"},
	{Marker: "pyproject.toml", Label: "Python", Category: "python"},
	{Marker: "requirements.txt", Label: "Python", Category: "python"},
	{Marker: "setup.py", Label: "Python", Category: "python"},
	{Marker: "pom.xml", Label: "Java", Category: "java"},
	{Marker: "build.gradle", Label: "Java", Category: "java"},
	{Marker: "build.gradle.kts", Label: "Java", Category: "java"},
	{Marker: "Gemfile", Label: "Ruby", Category: "ruby"},
	{Marker: "composer.json", Label: "PHP", Category: "php"},
	{Marker: "mix.exs", Label: "Elixir", Category: "elixir"},
	{Marker: "CMakeLists.txt", Label: "C/C++", Category: "cpp"},
	{Marker: "Dockerfile", Label: "Docker", Category: "docker"},
}

// Detect scans dir for marker files and returns the applicable categories,
// in table order, unique by category. A directory with no markers yields an
// empty result; that is a normal outcome, not an error.
func Detect(dir string) []Detection {
	var (
		found []Detection
		seen  = map[string]bool{}
	)

	for _, rule := range Rules {
		if seen[rule.Category] {
			continue
		}

		if fileExists(filepath.Join(dir, rule.Marker)) {
			found = append(found, Detection{Label: rule.Label, Category: rule.Category})
			seen[rule.Category] = true
		}
	}

	return found
}

// Categories returns just the category keys of a detection result.
func Categories(ds []Detection) []string {
	cats := make([]string, 0, len(ds))
	for _, d := range ds {
		cats = append(cats, d.Category)
	}

	return cats
}

// LabelFor returns the language label for a category key. Categories outside
// the marker table (for example ones installed by an older version) fall
// back to the key itself.
func LabelFor(category string) string {
	if category == CategoryGeneral {
		return "General"
	}

	for _, rule := range Rules {
		if rule.Category == category {
			return rule.Label
		}
	}

	return category
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}
