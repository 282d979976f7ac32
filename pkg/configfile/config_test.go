package configfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFilesExist(t *testing.T) {
	dir := t.TempDir()
	cfg, sources, err := Load(dir, "", nil)
	require.NoError(t, err)
	require.Equal(t, DefaultFile(), cfg)
	require.Empty(t, sources.Global)
	require.Empty(t, sources.Project)
}

func TestLoadProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{
  // project override
  "heap_bytes": 1048576,
  "dep_log2": 10,
}`), 0o600))

	cfg, sources, err := Load(dir, "", nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1048576), cfg.HeapBytes)
	require.Equal(t, uint(10), cfg.DepLog2)
	require.Equal(t, DefaultFile().GlobalBytes, cfg.GlobalBytes)
	require.Equal(t, path, sources.Project)
}

func TestLoadExplicitConfigPathMustExist(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Load(dir, filepath.Join(dir, "missing.hujson"), nil)
	require.Error(t, err)
}

func TestFormatEmitsJSONFieldNames(t *testing.T) {
	out, err := Format(DefaultFile())
	require.NoError(t, err)
	require.Contains(t, out, "global_bytes")
}

func TestSaveFileThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	want := DefaultFile()
	want.HeapBytes = 1 << 20
	require.NoError(t, SaveFile(path, want))

	cfg, sources, err := Load(dir, "", nil)
	require.NoError(t, err)
	require.Equal(t, want, cfg)
	require.Equal(t, path, sources.Project)
}
