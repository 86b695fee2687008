package pathutil_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixiebatch/internal/pathutil"
)

func TestResolveSafeFileContainment(t *testing.T) {
	baseDir := t.TempDir()

	got, err := pathutil.ResolveSafeFile(baseDir, "handoff/7-abc.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(baseDir, "handoff", "7-abc.json"), got)
}

func TestResolveSafeFileRejectsTraversal(t *testing.T) {
	baseDir := t.TempDir()
	_, err := pathutil.ResolveSafeFile(baseDir, "../../etc/passwd")
	assert.Error(t, err)
}

func TestResolveSafeFileRejectsAbsolute(t *testing.T) {
	baseDir := t.TempDir()
	_, err := pathutil.ResolveSafeFile(baseDir, "/etc/passwd")
	assert.Error(t, err)
}

func TestResolveSafeFileRejectsEmpty(t *testing.T) {
	baseDir := t.TempDir()
	_, err := pathutil.ResolveSafeFile(baseDir, "")
	assert.Error(t, err)
}

func TestJobRelFile(t *testing.T) {
	baseDir := t.TempDir()
	got, err := pathutil.JobRelFile(baseDir, "logs", 12, ".log")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(baseDir, "logs", "12.log"), got)
}
