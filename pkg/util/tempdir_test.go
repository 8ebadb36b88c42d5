package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempDir_Release(t *testing.T) {
	root := t.TempDir()
	dir, release, err := TempDir(root, "seg-*")
	require.NoError(t, err)
	assert.Equal(t, root, filepath.Dir(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.nrrd"), []byte("x"), 0644))

	release()
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestTempDir_BadRoot(t *testing.T) {
	_, release, err := TempDir(filepath.Join(t.TempDir(), "missing", "deeper"), "x-*")
	assert.Error(t, err)
	release()
}
