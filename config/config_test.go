package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paleotronic/diskprobe/disk"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, Load(""))
	opts, err := Options()
	require.NoError(t, err)
	assert.Equal(t, disk.DefaultOptions(), opts)
	assert.Equal(t, 4, Workers())
	assert.Equal(t, "sqlite", viper.GetString("catalog.driver"))
}

func TestLoadFile(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "diskprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
identify:
  order: [prodos, dos]
  wide: [ozdos]
  scan: false
  track_cache: 2
batch:
  workers: 0
`), 0o644))

	require.NoError(t, Load(path))
	opts, err := Options()
	require.NoError(t, err)
	assert.Equal(t, []disk.SectorOrder{disk.SectorOrderProDOS, disk.SectorOrderDOS33}, opts.OrderPreference)
	assert.Equal(t, []disk.WideLayout{disk.WideOzDOS}, opts.WidePreference)
	assert.False(t, opts.ScanProtected)
	assert.Equal(t, 2, opts.TrackCache)
	assert.Equal(t, 1, Workers())
}

func TestLoadEnv(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DISKPROBE_BATCH_WORKERS", "9")
	t.Setenv("DISKPROBE_IDENTIFY_SCAN", "false")

	require.NoError(t, Load(""))
	assert.Equal(t, 9, Workers())
	opts, err := Options()
	require.NoError(t, err)
	assert.False(t, opts.ScanProtected)
}

func TestBadOrder(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("identify:\n  order: [zigzag]\n"), 0o644))
	require.NoError(t, Load(path))
	_, err := Options()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("identify: [\n"), 0o644))
	viper.Reset()
	assert.Error(t, Load(path))
}
