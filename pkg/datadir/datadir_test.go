package datadir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_PathAccessors(t *testing.T) {
	d := New("/srv/.mmpa")

	assert.Equal(t, "/srv/.mmpa", d.Root())
	assert.Equal(t, "/srv/.mmpa/config.yaml", d.ConfigPath())
	assert.Equal(t, "/srv/.mmpa/.env", d.EnvPath())
	assert.Equal(t, "/srv/.mmpa/anchors.json", d.AnchorsPath())
	assert.Equal(t, "/srv/.mmpa/sequences.json", d.SequencesPath())
	assert.Equal(t, "/srv/.mmpa/mmpa.db", d.DatabasePath())
	assert.Equal(t, "/srv/.mmpa/.gitignore", d.GitignorePath())
}

func TestDir_DefaultRoot(t *testing.T) {
	d := New("")
	assert.Equal(t, DefaultRoot, filepath.Base(d.Root()))
	assert.True(t, filepath.IsAbs(d.Root()))
}

func TestDir_Exists(t *testing.T) {
	tmp := t.TempDir()

	assert.False(t, New(filepath.Join(tmp, "missing")).Exists())
	assert.True(t, New(tmp).Exists())
}

func TestEnsureStructure(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "data"))

	require.NoError(t, EnsureStructure(d))
	assert.True(t, d.Exists())

	data, err := os.ReadFile(d.GitignorePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "*.db")

	require.NoError(t, os.WriteFile(d.GitignorePath(), []byte("custom\n"), 0o600))
	require.NoError(t, EnsureStructure(d))

	data, err = os.ReadFile(d.GitignorePath())
	require.NoError(t, err)
	assert.Equal(t, "custom\n", string(data), "an existing .gitignore is kept")
}
