package cache

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paleotronic/diskprobe/disk"
	"github.com/paleotronic/diskprobe/internal/testimg"
	"github.com/paleotronic/diskprobe/report"
)

func TestVariant(t *testing.T) {
	opts := disk.DefaultOptions()
	assert.Equal(t, Variant("a.DSK", opts), Variant("b.dsk", opts))
	assert.NotEqual(t, Variant("a.dsk", opts), Variant("a.po", opts))

	swapped := opts
	swapped.OrderPreference = []disk.SectorOrder{disk.SectorOrderProDOS, disk.SectorOrderDOS33}
	assert.NotEqual(t, Variant("a.dsk", opts), Variant("a.dsk", swapped))

	noscan := opts
	noscan.ScanProtected = false
	assert.NotEqual(t, Variant("a.nib", opts), Variant("a.nib", noscan))
}

func TestNilCacheMisses(t *testing.T) {
	var c *Cache
	_, ok := c.Get(context.Background(), "/a.dsk", "a.dsk", "00", "v")
	assert.False(t, ok)
	c.Put(context.Background(), "v", &report.Disk{})
	assert.NoError(t, c.Close())
}

func TestBadURL(t *testing.T) {
	_, err := New(context.Background(), Config{RedisURL: "mysql://nowhere"})
	assert.Error(t, err)
}

func TestCacheIntegration(t *testing.T) {
	redisAddr := "localhost:6379"
	conn, err := net.DialTimeout("tcp", redisAddr, time.Second)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	conn.Close()

	ctx := context.Background()
	c, err := New(ctx, Config{RedisURL: fmt.Sprintf("redis://%s/0", redisAddr), TTL: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	img, err := disk.Open("games.dsk", testimg.DOS33(3, 254), disk.DefaultOptions())
	require.NoError(t, err)
	d := report.FromImage("/first/games.dsk", img)
	variant := Variant("games.dsk", disk.DefaultOptions())
	c.client.Del(ctx, key(d.SHA256, variant))

	_, ok := c.Get(ctx, "/second/copy.dsk", "copy.dsk", d.SHA256, variant)
	require.False(t, ok)

	c.Put(ctx, variant, d)
	got, ok := c.Get(ctx, "/second/copy.dsk", "copy.dsk", d.SHA256, variant)
	require.True(t, ok)
	assert.Equal(t, "/second/copy.dsk", got.FullPath)
	assert.Equal(t, "copy.dsk", got.Filename)
	assert.Equal(t, d.Volumes, got.Volumes)
}
