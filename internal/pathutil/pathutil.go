// Package pathutil provides utilities for safe file path construction.
package pathutil

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"
)

// ResolveSafeFile resolves filePath relative to baseDir, ensuring the
// result stays within baseDir. Used (through JobRelFile) by the detached
// launcher (package control) to compute the runner's per-job log file path
// under the configured jobs root without ever escaping it, even if a
// caller-supplied component were mishandled upstream.
func ResolveSafeFile(baseDir, filePath string) (string, error) {
	if filePath == "" {
		return "", errors.New("file path must not be empty")
	}
	if strings.Contains(filePath, "..") {
		return "", errors.New("file path must not contain \"..\"")
	}
	if filepath.IsAbs(filePath) {
		return "", errors.New("file path must not be absolute")
	}

	cleanBase := filepath.Clean(baseDir)
	resolved := filepath.Clean(filepath.Join(cleanBase, filePath))

	// Verify the resolved path is within the base directory. Add the
	// separator to cleanBase to avoid prefix collisions between sibling
	// directories (e.g. /tmp/base and /tmp/base-other).
	prefix := cleanBase + string(filepath.Separator)
	if resolved != cleanBase && !strings.HasPrefix(resolved, prefix) {
		return "", errors.New("file path escapes base directory")
	}

	return resolved, nil
}

// JobRelFile builds the relative path "<subdir>/<jobid><ext>" and resolves
// it against baseDir via ResolveSafeFile. jobid is always an int controlled
// by this project's own allocator, so this never actually fails; it routes
// the per-job log file path through the containment check rather than an
// ad hoc filepath.Join call. Handoff file paths are built separately, by
// control.WriteHandoff.
func JobRelFile(baseDir, subdir string, jobid int, ext string) (string, error) {
	return ResolveSafeFile(baseDir, filepath.Join(subdir, strconv.Itoa(jobid)+ext))
}
