package loggy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDiscardsBeforeInit(t *testing.T) {
	Close()
	l := Get(1)
	require.NotNil(t, l)
	assert.Same(t, l, Get(1))
	l.Logf("nothing to see %d", 1)
}

func TestInitWritesFile(t *testing.T) {
	dir := t.TempDir()
	old := LogFolder
	LogFolder = dir
	defer func() { LogFolder = old }()

	require.NoError(t, Init("loggy-test"))
	Get(3).Logf("hello %s", "world")
	Get(3).Errorf("bad %d", 7)
	Close()

	files, err := filepath.Glob(filepath.Join(dir, "loggy-test_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "hello world"))
	assert.True(t, strings.Contains(text, "level=ERROR"))
	assert.True(t, strings.Contains(text, "worker=3"))
}
