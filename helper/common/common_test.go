package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSetupDataDir(t *testing.T) {
	t.Parallel()

	dataDir := filepath.Join(t.TempDir(), "data")

	require.NoError(t, SetupDataDir(dataDir, "journal", "logs"))

	assert.DirExists(t, dataDir)
	assert.DirExists(t, filepath.Join(dataDir, "journal"))
	assert.DirExists(t, filepath.Join(dataDir, "logs"))

	// existing directories are kept
	require.NoError(t, SetupDataDir(dataDir, "journal"))
}

func TestSetupDataDir_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	assert.Error(t, SetupDataDir(path))
}

func TestEncodeUint64ToBytes_Order(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Uint64().Draw(t, "a")
		b := rapid.Uint64().Draw(t, "b")

		ea, eb := string(EncodeUint64ToBytes(a)), string(EncodeUint64ToBytes(b))

		assert.Len(t, ea, 8)
		assert.Equal(t, a < b, ea < eb)
	})
}
