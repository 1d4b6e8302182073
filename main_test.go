package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paleotronic/diskprobe/disk"
	"github.com/paleotronic/diskprobe/internal/testimg"
	"github.com/paleotronic/diskprobe/report"
)

// run executes the CLI with a scratch home directory.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeImage(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestDump(t *testing.T) {
	data := make([]byte, 20)
	copy(data, []byte{0xC8, 0xC5, 0xCC, 0xCC, 0xCF, 0x00, 'a'})
	lines := strings.Split(strings.TrimRight(dump(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "0000: c8 c5 cc cc cf 00 61 00 00 00 00 00 00 00 00 00  HELLO.a.........", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0010: 00 00 00 00 "))
	assert.True(t, strings.HasSuffix(lines[1], "  ...."))
}

func TestSmartSplit(t *testing.T) {
	tests := []struct {
		line string
		verb string
		args []string
	}{
		{"mount games.dsk", "mount", []string{"games.dsk"}},
		{`mount "my games.dsk"`, "mount", []string{"my games.dsk"}},
		{`mount my\ games.dsk`, "mount", []string{"my games.dsk"}},
		{"sector  17   0", "sector", []string{"17", "0"}},
		{"", "", nil},
	}
	for _, tt := range tests {
		verb, args := smartSplit(tt.line)
		assert.Equal(t, tt.verb, verb, tt.line)
		if tt.args == nil {
			assert.Empty(t, args)
		} else {
			assert.Equal(t, tt.args, args, tt.line)
		}
	}
}

func TestIdentifyCommand(t *testing.T) {
	dir := t.TempDir()
	p := writeImage(t, dir, "games.dsk", testimg.DOS33(3, 254))

	out, _, err := run(t, "identify", p)
	require.NoError(t, err)
	assert.Contains(t, out, "Apple DOS 16 Sector")

	out, _, err = run(t, "identify", "--json", p)
	require.NoError(t, err)
	var disks []*report.Disk
	require.NoError(t, json.Unmarshal([]byte(out), &disks))
	require.Len(t, disks, 1)
	assert.Equal(t, "dos", disks[0].Volumes[0].Family)

	_, errOut, err := run(t, "identify", p, filepath.Join(dir, "missing.dsk"))
	assert.Error(t, err)
	assert.Contains(t, errOut, "missing.dsk")

	_, _, err = run(t, "identify", "--json", "--cbor", p)
	assert.Error(t, err)
}

func TestDumpCommands(t *testing.T) {
	dir := t.TempDir()
	data := testimg.DOS33(3, 254)
	p := writeImage(t, dir, "games.dsk", data)

	out, _, err := run(t, "sector", p, "17", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Track 17 sector 0")
	assert.Contains(t, out, "0000: 00 11 0f 03")

	out, _, err = run(t, "block", p, "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Block 0")

	_, _, err = run(t, "sector", p, "40", "0")
	assert.ErrorIs(t, err, disk.ErrInvalidAddress)

	_, _, err = run(t, "track", p, "0")
	assert.ErrorIs(t, err, disk.ErrUnsupported)

	_, _, err = run(t, "sector", p, "17", "0", "--disk", "3")
	assert.Error(t, err)
}

func TestNibblizeAndMarkers(t *testing.T) {
	dir := t.TempDir()
	in := writeImage(t, dir, "games.dsk", testimg.DOS33(3, 254))
	nib := filepath.Join(dir, "games.nib")

	out, _, err := run(t, "nibblize", in, nib)
	require.NoError(t, err)
	assert.Contains(t, out, "232960 bytes")

	out, _, err = run(t, "markers", nib)
	require.NoError(t, err)
	assert.Contains(t, out, "35 tracks, standard framing")
	assert.Contains(t, out, "Track 34: 16 sectors")
	assert.Contains(t, out, "Track 00: 00 01 02")
	assert.Contains(t, out, "Track cache:")
	assert.Contains(t, out, "8 held")

	out, _, err = run(t, "track", nib, "17")
	require.NoError(t, err)
	assert.Contains(t, out, "Track 17, 6656 nibbles")

	// the nibble image reads back the same VTOC
	out, _, err = run(t, "sector", nib, "17", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "0000: 00 11 0f 03")

	_, _, err = run(t, "nibblize", in, nib, "--order", "zigzag")
	assert.Error(t, err)
}

func TestIngestCommands(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "archive")
	require.NoError(t, os.MkdirAll(archive, 0o755))
	dos := testimg.DOS33(3, 254)
	first := writeImage(t, archive, "one.dsk", dos)
	writeImage(t, archive, "two.do", dos)
	writeImage(t, archive, "blank.po", make([]byte, disk.STD_DISK_BYTES))

	t.Setenv("DISKPROBE_CATALOG_DSN", filepath.Join(dir, "catalog.db"))

	out, _, err := run(t, "ingest", archive, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Images                              3")
	assert.Contains(t, out, "Recognized                          2")

	out, _, err = run(t, "lookup", first)
	require.NoError(t, err)
	assert.Contains(t, out, "volume    : Apple DOS 16 Sector")

	_, _, err = run(t, "lookup", filepath.Join(archive, "nope.dsk"))
	assert.Error(t, err)

	out, _, err = run(t, "dupes")
	require.NoError(t, err)
	assert.Contains(t, out, "Volume "+first+" has 1 duplicate(s):")
	assert.Contains(t, out, "dos")
}

func TestShell(t *testing.T) {
	dir := t.TempDir()
	p := writeImage(t, dir, "games.dsk", testimg.DOS33(3, 254))

	var out, errOut bytes.Buffer
	sh := newShell(disk.DefaultOptions(), &out, &errOut)

	assert.Equal(t, -1, sh.process("info"))
	assert.Contains(t, errOut.String(), "only works on mounted disks")

	require.Equal(t, 0, sh.process(`mount "`+p+`"`))
	assert.Contains(t, out.String(), "mount disk in slot 0")
	assert.Equal(t, "dsk:0:games.dsk> ", sh.prompt())

	// mounting the same path again reuses the slot
	require.Equal(t, 0, sh.process(`mount "`+p+`"`))
	assert.Nil(t, sh.volumes[1])

	out.Reset()
	require.Equal(t, 0, sh.process("sector 17 0"))
	assert.Contains(t, out.String(), "0000: 00 11 0f 03")

	out.Reset()
	require.Equal(t, 0, sh.process("block 0"))
	assert.Contains(t, out.String(), "0000: ")

	out.Reset()
	require.Equal(t, 0, sh.process("info"))
	assert.Contains(t, out.String(), "DISK VOLUME 254")

	assert.Equal(t, -1, sh.process("track 0"))
	assert.Equal(t, -1, sh.process("sector 1"))
	assert.Equal(t, -1, sh.process("target 5"))
	assert.Equal(t, -1, sh.process("frobnicate"))

	out.Reset()
	require.Equal(t, 0, sh.process("help"))
	assert.Contains(t, out.String(), "mount      Mount a disk image")

	require.Equal(t, 0, sh.process("unmount"))
	assert.Nil(t, sh.current())

	out.Reset()
	blank := writeImage(t, dir, "blank.dsk", make([]byte, disk.STD_DISK_BYTES))
	require.Equal(t, 0, sh.process(`mount "`+blank+`"`))
	assert.Contains(t, out.String(), "blank.dsk: format not recognized")
	assert.Equal(t, shellExit, sh.process("quit"))
}

func TestShellCompleter(t *testing.T) {
	sc := &shellCompleter{sh: newShell(disk.DefaultOptions(), &bytes.Buffer{}, &bytes.Buffer{})}
	line := []rune("mar")
	items, n := sc.Do(line, len(line))
	assert.Equal(t, 3, n)
	require.Len(t, items, 1)
	assert.Equal(t, "kers", string(items[0]))
}
