package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paleotronic/diskprobe/disk"
	"github.com/paleotronic/diskprobe/internal/testimg"
	"github.com/paleotronic/diskprobe/report"
)

func setupCatalog(t *testing.T) *Catalog {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	c, err := Open(context.Background(), Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func summary(t *testing.T, path string, data []byte) *report.Disk {
	t.Helper()
	img, err := disk.Open(path, data, disk.DefaultOptions())
	require.NoError(t, err)
	return report.FromImage(path, img)
}

func TestRecordAndFind(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	want := summary(t, "/archive/games.dsk", testimg.DOS33(3, 254))
	require.NoError(t, c.Record(ctx, want))

	got, err := c.Find(ctx, "/archive/games.dsk")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = c.Find(ctx, "/archive/missing.dsk")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordReplaces(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, summary(t, "/a/disk.dsk", testimg.DOS33(3, 254))))
	blank := summary(t, "/a/disk.dsk", make([]byte, disk.STD_DISK_BYTES))
	require.NoError(t, c.Record(ctx, blank))

	got, err := c.Find(ctx, "/a/disk.dsk")
	require.NoError(t, err)
	assert.Empty(t, got.Volumes)
	assert.Equal(t, blank.SHA256, got.SHA256)

	var images, disks int64
	require.NoError(t, c.conn.Model(&ImageRecord{}).Count(&images).Error)
	require.NoError(t, c.conn.Model(&DiskRecord{}).Count(&disks).Error)
	assert.Equal(t, int64(1), images)
	assert.Zero(t, disks)
}

func TestDuplicatesAndFamilies(t *testing.T) {
	c := setupCatalog(t)
	ctx := context.Background()

	dos := testimg.DOS33(2, 254)
	for _, p := range []string{"/x/one.dsk", "/y/copy.dsk"} {
		require.NoError(t, c.Record(ctx, summary(t, p, dos)))
	}
	require.NoError(t, c.Record(ctx, summary(t, "/z/other.dsk", testimg.DOS33(3, 7))))

	paths, err := c.Paths(ctx, disk.Checksum(dos))
	require.NoError(t, err)
	assert.Equal(t, []string{"/x/one.dsk", "/y/copy.dsk"}, paths)

	dc, err := c.Duplicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"/x/one.dsk", "/y/copy.dsk"}}, dc.Groups())

	fams, err := c.Families(ctx)
	require.NoError(t, err)
	assert.Equal(t, []FamilyCount{{Family: "dos", Count: 3}}, fams)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"})
	assert.Error(t, err)
}
