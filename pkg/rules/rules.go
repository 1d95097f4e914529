// Package rules implements the synchronization engine: fresh installs and
// checksum-reconciled updates of rule files into a target installation.
package rules

import (
	"errors"
	"os"
	"path/filepath"

	"rulesync/pkg/checksum"
	"rulesync/pkg/index"
)

var (
	// ErrAlreadyInstalled is returned when install finds an existing
	// installation and no reinstall was requested.
	ErrAlreadyInstalled = errors.New("rules already installed, run update or reinstall with --force")

	// ErrNotInstalled is returned when update finds no installation.
	ErrNotInstalled = errors.New("no rules installation found, run install first")
)

// RulesDirName is the rules directory created under the installation root.
const RulesDirName = ".rules"

// Installation locates the pieces of one target installation: the rules
// tree, the digest store inside it, and the generated index document at the
// root. An installation exists once its digest store does; it is never
// removed by the engine.
type Installation struct {
	Root      string
	RulesDir  string
	IndexPath string
}

// NewInstallation returns the [Installation] rooted at root.
func NewInstallation(root string) Installation {
	return Installation{
		Root:      root,
		RulesDir:  filepath.Join(root, RulesDirName),
		IndexPath: filepath.Join(root, index.FileName),
	}
}

// StorePath returns the path of the digest store.
func (i Installation) StorePath() string {
	return filepath.Join(i.RulesDir, checksum.StoreName)
}

// Exists reports whether an installation is present, marked by the digest
// store.
func (i Installation) Exists() bool {
	info, err := os.Stat(i.StorePath())

	return err == nil && info.Mode().IsRegular()
}

// Action classifies what the engine did, or would do, with one file.
type Action int

const (
	// ActionAdded: no file existed at the destination.
	ActionAdded Action = iota
	// ActionUpdated: the destination matched its recorded digest and was
	// replaced with new source content.
	ActionUpdated
	// ActionOverwritten: the destination was replaced despite local edits or
	// unknown provenance, because an overwrite was forced.
	ActionOverwritten
	// ActionSkipped: the destination was left untouched to protect local
	// edits or externally managed files.
	ActionSkipped
	// ActionUnchanged: the destination already equals the source content.
	ActionUnchanged
)

func (a Action) String() string {
	switch a {
	case ActionAdded:
		return "added"
	case ActionUpdated:
		return "updated"
	case ActionOverwritten:
		return "overwritten"
	case ActionSkipped:
		return "skipped"
	case ActionUnchanged:
		return "unchanged"
	}

	return "unknown"
}

// Summary reports the outcome of one sync run. Forced overwrites count as
// updates; unchanged files count as nothing.
type Summary struct {
	Added        int
	Updated      int
	Skipped      int
	BytesWritten int64
}

func (s *Summary) record(action Action, size int64) {
	switch action {
	case ActionAdded:
		s.Added++
		s.BytesWritten += size
	case ActionUpdated, ActionOverwritten:
		s.Updated++
		s.BytesWritten += size
	case ActionSkipped:
		s.Skipped++
	case ActionUnchanged:
	}
}
