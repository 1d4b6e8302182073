package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paleotronic/diskprobe/disk"
	"github.com/paleotronic/diskprobe/report"
)

// dump prints 16 bytes a line with an ASCII column. Apple ][ text has the
// high bit set, so it is stripped before deciding what is printable.
func dump(in []byte) string {
	var sb strings.Builder
	for i := 0; i < len(in); i += 16 {
		row := in[i:min(i+16, len(in))]
		fmt.Fprintf(&sb, "%.4x: ", i)
		for j := 0; j < 16; j++ {
			if j < len(row) {
				fmt.Fprintf(&sb, "%.2x ", row[j])
			} else {
				sb.WriteString("   ")
			}
		}
		sb.WriteString(" ")
		for _, v := range row {
			c := v & 0x7F
			if c < 0x20 || c == 0x7F {
				c = '.'
			}
			sb.WriteByte(c)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func parseNumber(s string) (int, error) {
	n, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return int(n), nil
}

// pickDisk returns accepted disk n, or nil when n is negative.
func pickDisk(img *disk.Image, n int) (*disk.FormattedDisk, error) {
	if n < 0 {
		return nil, nil
	}
	if n >= len(img.Disks) {
		return nil, fmt.Errorf("image has %d recognized disks", len(img.Disks))
	}
	return img.Disks[n], nil
}

func sectorDevice(img *disk.Image, n int) (disk.TrackSectorDevice, error) {
	fd, err := pickDisk(img, n)
	if err != nil {
		return nil, err
	}
	ts := img.SectorDevice()
	if fd != nil {
		ts = fd.Sectors
	}
	if ts == nil {
		return nil, fmt.Errorf("%s: %w: no track/sector view", img.Filename, disk.ErrUnsupported)
	}
	return ts, nil
}

func blockDevice(img *disk.Image, n int) (disk.BlockDevice, error) {
	fd, err := pickDisk(img, n)
	if err != nil {
		return nil, err
	}
	bd := img.BlockDevice()
	if fd != nil {
		bd = fd.Blocks
	}
	if bd == nil {
		return nil, fmt.Errorf("%s: %w: no block view", img.Filename, disk.ErrUnsupported)
	}
	return bd, nil
}

func newSectorCmd() *cobra.Command {
	var diskN int
	cmd := &cobra.Command{
		Use:   "sector FILE TRACK SECTOR",
		Short: "Hex dump a logical sector",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseNumber(args[1])
			if err != nil {
				return err
			}
			s, err := parseNumber(args[2])
			if err != nil {
				return err
			}
			img, err := openImage(cmd, args[0])
			if err != nil {
				return err
			}
			ts, err := sectorDevice(img, diskN)
			if err != nil {
				return err
			}
			data, err := ts.ReadSector(t, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Track %d sector %d\n%s", t, s, dump(data))
			return nil
		},
	}
	cmd.Flags().IntVar(&diskN, "disk", -1, "read through recognized disk N (for 800K DOS volumes)")
	return cmd
}

func newBlockCmd() *cobra.Command {
	var diskN int
	cmd := &cobra.Command{
		Use:   "block FILE BLOCK",
		Short: "Hex dump a 512 byte block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseNumber(args[1])
			if err != nil {
				return err
			}
			img, err := openImage(cmd, args[0])
			if err != nil {
				return err
			}
			bd, err := blockDevice(img, diskN)
			if err != nil {
				return err
			}
			data, err := bd.ReadBlock(n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Block %d\n%s", n, dump(data))
			return nil
		},
	}
	cmd.Flags().IntVar(&diskN, "disk", -1, "read through recognized disk N")
	return cmd
}

func newTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track FILE TRACK",
		Short: "Hex dump the raw nibbles of a track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseNumber(args[1])
			if err != nil {
				return err
			}
			img, err := openImage(cmd, args[0])
			if err != nil {
				return err
			}
			if img.Tracks == nil {
				return fmt.Errorf("%s: %w: not a nibble image", img.Filename, disk.ErrUnsupported)
			}
			data, err := img.Tracks.ReadTrack(t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Track %d, %d nibbles\n%s", t, len(data), dump(data))
			return nil
		},
	}
}

// writeMarkers lists the framing used on each track of a nibble image.
func writeMarkers(w io.Writer, img *disk.Image) error {
	if img.Tracks == nil {
		return fmt.Errorf("%s: %w: not a nibble image", img.Filename, disk.ErrUnsupported)
	}
	if len(img.Markers) == 0 {
		fmt.Fprintln(w, "no sector framing found")
		return nil
	}
	how := "standard"
	if img.Scanned {
		how = "scanned"
	}
	fmt.Fprintf(w, "%d tracks, %s framing\n", img.Tracks.Tracks(), how)
	for t := 0; t < img.Tracks.Tracks(); t++ {
		m := disk.MarkerFor(img.Markers, t)
		data, err := img.Tracks.ReadTrack(t)
		if err != nil {
			fmt.Fprintf(w, "Track %.2d: %v\n", t, err)
			continue
		}
		fmt.Fprintf(w, "Track %.2d: %s, %d address fields\n", t, m, len(disk.Addresses(data, m)))
	}
	if ts := img.SectorDevice(); ts != nil {
		fmt.Fprintln(w)
		report.WriteBitmap(w, report.Readability(ts))
		if nd, ok := ts.(*disk.NibbleDevice); ok {
			hits, misses, held := nd.CacheStats()
			fmt.Fprintf(w, "\nTrack cache: %d hits, %d misses, %d held\n", hits, misses, held)
		}
	}
	return nil
}

func newMarkersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "markers FILE",
		Short: "Show the sector framing found on each track of a nibble image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := openImage(cmd, args[0])
			if err != nil {
				return err
			}
			return writeMarkers(cmd.OutOrStdout(), img)
		},
	}
}

func newNibblizeCmd() *cobra.Command {
	var order string
	var volume int
	cmd := &cobra.Command{
		Use:   "nibblize IN OUT",
		Short: "Convert a 140K sector image to a .nib image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := newFetcher(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			name, data, err := f.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			so := disk.SectorOrderDOS33
			switch {
			case order != "":
				if so, err = disk.ParseSectorOrder(order); err != nil {
					return err
				}
			case strings.HasSuffix(strings.ToLower(name), ".po"):
				so = disk.SectorOrderProDOS
			}
			if volume < 0 || volume > 255 {
				return errors.New("volume must be 0-255")
			}
			nib, err := disk.Nibblize(data, so, volume)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], nib, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes, %s order input)\n", args[1], len(nib), so)
			return nil
		},
	}
	cmd.Flags().StringVar(&order, "order", "", "sector order of the input (dos, prodos, physical); .po implies prodos")
	cmd.Flags().IntVar(&volume, "volume", disk.DEFAULT_VOLUME, "volume number written into address fields")
	return cmd
}
