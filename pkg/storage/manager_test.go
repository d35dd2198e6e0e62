package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	require.NoError(t, err)

	assert.Equal(t, 0, manager.Count())
	assert.False(t, manager.IsSaved("items"))
	assert.Equal(t, tempDir, manager.OutputDir())

	data := []byte(`{"items":[]}`)
	require.NoError(t, manager.SaveResponse("items", bytes.NewReader(data)))

	expectedPath := filepath.Join(tempDir, "items.json")
	assert.Equal(t, expectedPath, manager.Path("items"))

	content, err := os.ReadFile(expectedPath)
	require.NoError(t, err)
	assert.Equal(t, data, content)

	assert.True(t, manager.IsSaved("items"))
	assert.Equal(t, 1, manager.Count())

	_, err = os.Stat(expectedPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file should be gone")
}

func TestManagerScansExistingFiles(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "a.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "b.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "dir.json"), 0755))

	manager, err := NewManager(tempDir)
	require.NoError(t, err)

	assert.Equal(t, 2, manager.Count())
	assert.True(t, manager.IsSaved("a"))
	assert.True(t, manager.IsSaved("b"))
	assert.False(t, manager.IsSaved("notes"))
}

func TestManagerPicksUpExternalWrites(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(tempDir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "late.json"), []byte("{}"), 0644))

	assert.True(t, manager.IsSaved("late"))
	assert.Equal(t, 1, manager.Count())
}

func TestManagerCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	_, err := NewManager(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestSaveResponseFailures(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(tempDir)
	require.NoError(t, err)

	err = manager.SaveResponse("broken", failingReader{})
	assert.ErrorContains(t, err, "failed to write response")
	assert.False(t, manager.IsSaved("broken"))
	_, statErr := os.Stat(filepath.Join(tempDir, "broken.json.tmp"))
	assert.True(t, os.IsNotExist(statErr))

	for _, name := range []string{"", ".", "..", "../escape", `a\b`} {
		assert.Error(t, manager.SaveResponse(name, bytes.NewReader(nil)), "name %q", name)
	}
}

func TestConcurrentSaves(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("resp-%d", i)
			assert.NoError(t, manager.SaveResponse(name, bytes.NewReader([]byte("{}"))))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, manager.Count())
}
