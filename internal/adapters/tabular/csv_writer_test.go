package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := CreateCSV(path, []string{"FID", "JSON"})
	require.NoError(t, err)
	require.NoError(t, w.Write([]string{"1", `{"legs":[]}`}))

	// Flushed before Close.
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FID,JSON\n1,\"{\"\"legs\"\":[]}\"\n", string(b))

	require.NoError(t, w.Close())
}

func TestCreateCSVNeverOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o600))

	_, err := CreateCSV(path, []string{"FID"})
	require.Error(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(b))
}
