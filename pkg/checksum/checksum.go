// Package checksum persists content fingerprints for tracked files.
//
// The store is a line-oriented text file mapping relative paths to SHA-256
// digests. It is always rewritten in full from the current file set after a
// sync, never patched incrementally, so stored digests always reflect the
// content the engine last wrote.
package checksum

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StoreName is the file name of the digest store inside the rules directory.
// Its presence marks an installation.
const StoreName = ".checksums"

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// SumFile returns the hex-encoded SHA-256 digest of the file at path.
func SumFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only descriptor.

	h := sha256.New()

	_, err = io.Copy(h, f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Load reads a digest store from path. A missing or empty store is a normal
// state for a fresh target and yields an empty map, not an error.
func Load(path string) (map[string]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}

		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only descriptor.

	sums := map[string]string{}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		digest, relPath, ok := strings.Cut(line, "  ")
		if !ok {
			return nil, fmt.Errorf("parse store %s: malformed line %q", path, line)
		}

		sums[strings.TrimSpace(relPath)] = digest
	}

	err = sc.Err()
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	return sums, nil
}

// Save writes the digest store to path, replacing any previous store in
// full. Entries are sorted by relative path, so output is deterministic.
func Save(path string, sums map[string]string) error {
	paths := make([]string, 0, len(sums))
	for p := range sums {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%s  %s\n", sums[p], p)
	}

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	err = os.WriteFile(path, []byte(b.String()), 0o600)
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}

	return nil
}
