package tscfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("core_locid: 3\nport_count: 4\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, 3, cfg.CoreLocID)
	require.EqualValues(t, 4, cfg.PortCount)
	// fields the file didn't mention keep Default()'s values.
	require.Equal(t, Default().BufCount, cfg.BufCount)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"remote_count": 2, "verbose_status_messages": false}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, 2, cfg.RemoteCount)
	require.False(t, cfg.VerboseStatusMessages)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestGCOGetPutIsolated(t *testing.T) {
	orig := GCO.Get()
	defer GCO.Put(orig)

	custom := Default()
	custom.PortCount = 9
	GCO.Put(custom)
	require.EqualValues(t, 9, GCO.Get().PortCount)
}
