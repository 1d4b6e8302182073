package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/paleotronic/diskprobe/batch"
	"github.com/paleotronic/diskprobe/disk"
	"github.com/paleotronic/diskprobe/fetch"
	"github.com/paleotronic/diskprobe/loggy"
	"github.com/paleotronic/diskprobe/report"
)

const MAXVOL = 8

const shellExit = 999

type mountedImage struct {
	Path  string
	Image *disk.Image
}

type shellCommandContext int

const (
	sccNone shellCommandContext = 1 << iota
	sccLocal
	sccCommand
)

type shellCommand struct {
	Name             string
	Description      string
	MinArgs, MaxArgs int
	Code             func(sh *shell, args []string) int
	NeedsMount       bool
	Context          shellCommandContext
	Text             []string
}

// shell is the interactive session: up to MAXVOL mounted images and a
// current target slot.
type shell struct {
	volumes [MAXVOL]*mountedImage
	target  int
	opts    disk.Options
	fetcher *fetch.Fetcher
	out     io.Writer
	errOut  io.Writer
}

func newShell(opts disk.Options, out, errOut io.Writer) *shell {
	return &shell{target: -1, opts: opts, fetcher: &fetch.Fetcher{}, out: out, errOut: errOut}
}

var commandList map[string]*shellCommand

func init() {
	commandList = map[string]*shellCommand{
		"mount": {
			Name:        "mount",
			Description: "Mount a disk image",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellMount,
			Context:     sccLocal,
			Text: []string{
				"mount <diskfile>",
				"",
				"Mounts disk and switches to the new slot",
			},
		},
		"unmount": {
			Name:        "unmount",
			Description: "Unmount disk image",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellUnmount,
			NeedsMount:  true,
			Context:     sccNone,
			Text: []string{
				"unmount [<slot>]",
				"",
				"Unmount the disk in the specified slot (or current slot)",
			},
		},
		"disks": {
			Name:        "disks",
			Description: "List mounted volumes",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellDisks,
			Context:     sccNone,
		},
		"target": {
			Name:        "target",
			Description: "Select mounted volume as default",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellTarget,
			Context:     sccNone,
			Text: []string{
				"target <slot>",
				"",
				"Select slot as default for commands",
			},
		},
		"info": {
			Name:        "info",
			Description: "Information about the current disk",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellInfo,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"sector": {
			Name:        "sector",
			Description: "Dump a sector of the current disk",
			MinArgs:     2,
			MaxArgs:     3,
			Code:        shellSector,
			NeedsMount:  true,
			Context:     sccNone,
			Text: []string{
				"sector <track> <sector> [<disk>]",
				"",
				"Hex dump a logical sector. <disk> picks one of the recognized",
				"volumes, for images holding more than one.",
			},
		},
		"block": {
			Name:        "block",
			Description: "Dump a block of the current disk",
			MinArgs:     1,
			MaxArgs:     2,
			Code:        shellBlock,
			NeedsMount:  true,
			Context:     sccNone,
			Text: []string{
				"block <block> [<disk>]",
				"",
				"Hex dump a 512 byte block.",
			},
		},
		"track": {
			Name:        "track",
			Description: "Dump the raw nibbles of a track",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellTrack,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"markers": {
			Name:        "markers",
			Description: "Show sector framing per track",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellMarkers,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"help": {
			Name:        "help",
			Description: "Shows this help",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellHelp,
			Context:     sccCommand,
			Text: []string{
				"help <command>",
				"",
				"Display specific help for command or list of commands",
			},
		},
		"quit": {
			Name:        "quit",
			Description: "Leave this place",
			MinArgs:     -1,
			MaxArgs:     -1,
			Code:        shellQuit,
			Context:     sccNone,
		},
		"ls": {
			Name:        "ls",
			Description: "List local files",
			MinArgs:     0,
			MaxArgs:     999,
			Code:        shellListFiles,
			Context:     sccLocal,
		},
		"cd": {
			Name:        "cd",
			Description: "Change local path",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellCd,
			Context:     sccLocal,
		},
	}
}

func smartSplit(line string) (string, []string) {
	var out []string

	var inqq bool
	var lastEscape bool
	var chunk string

	add := func() {
		if chunk != "" {
			out = append(out, chunk)
			chunk = ""
		}
	}

	for _, ch := range line {
		switch {
		case ch == '"':
			inqq = !inqq
			add()
		case ch == ' ':
			if inqq || lastEscape {
				chunk += string(ch)
			} else {
				add()
			}
			lastEscape = false
		case ch == '\\' && !inqq:
			lastEscape = true
		default:
			chunk += string(ch)
		}
	}

	add()

	if len(out) == 0 {
		return "", out
	}
	return out[0], out[1:]
}

func (sh *shell) current() *mountedImage {
	if sh.target < 0 {
		return nil
	}
	return sh.volumes[sh.target]
}

func (sh *shell) prompt() string {
	m := sh.current()
	if m == nil {
		return "dsk:<no mount>> "
	}
	return fmt.Sprintf("dsk:%d:%s> ", sh.target, filepath.Base(m.Path))
}

// mount puts img in the first free slot, or returns the slot already
// holding the same path.
func (sh *shell) mount(m *mountedImage) (int, error) {
	free := -1
	for i, v := range sh.volumes {
		if v == nil {
			if free == -1 {
				free = i
			}
		} else if v.Path == m.Path {
			sh.volumes[i] = m
			return i, nil
		}
	}
	if free == -1 {
		return -1, errors.New("no free slots")
	}
	sh.volumes[free] = m
	return free, nil
}

func (sh *shell) errorf(format string, v ...interface{}) int {
	fmt.Fprintf(sh.errOut, format, v...)
	return -1
}

func (sh *shell) process(line string) int {
	verb, args := smartSplit(strings.TrimSpace(line))
	if verb == "" {
		return 0
	}
	verb = strings.ToLower(verb)
	command, ok := commandList[verb]
	if !ok {
		return sh.errorf("Unrecognized command: %s\n", verb)
	}
	if command.MinArgs != -1 && len(args) < command.MinArgs {
		return sh.errorf("%s expects at least %d arguments\n", verb, command.MinArgs)
	}
	if command.MaxArgs != -1 && len(args) > command.MaxArgs {
		return sh.errorf("%s expects at most %d arguments\n", verb, command.MaxArgs)
	}
	if command.NeedsMount && sh.current() == nil {
		return sh.errorf("%s only works on mounted disks\n", verb)
	}
	return command.Code(sh, args)
}

func (sh *shell) run(historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       sh.prompt(),
		HistoryFile:  historyFile,
		AutoComplete: &shellCompleter{sh: sh},
		Stdout:       sh.out,
		Stderr:       sh.errOut,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return nil
		}
		if sh.process(line) == shellExit {
			return nil
		}
		rl.SetPrompt(sh.prompt())
	}
}

type shellCompleter struct {
	sh *shell
}

func hasPrefix(str []rune, prefix []rune) bool {
	if len(prefix) > len(str) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if str[i] != prefix[i] {
			return false
		}
	}
	return true
}

func shellEscape(str []rune) []rune {
	out := make([]rune, 0, len(str))
	for _, v := range str {
		if v == ' ' {
			out = append(out, '\\')
		}
		out = append(out, v)
	}
	return out
}

func (sc *shellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	verb := ""
	chunk := ""
	for _, ch := range line {
		if ch == ' ' {
			verb = chunk
			break
		}
		chunk += string(ch)
	}

	// the word under the cursor, with escaped spaces kept
	cprefix := ""
	var lastEscape bool
	for i := 0; i < pos; i++ {
		ch := line[i]
		switch {
		case ch == '\\':
			lastEscape = true
		case ch == ' ' && !lastEscape:
			cprefix = ""
		default:
			cprefix += string(ch)
			lastEscape = false
		}
	}

	scope := sccCommand
	if cmd, ok := commandList[verb]; ok {
		scope = cmd.Context
	}

	var items [][]rune
	switch scope {
	case sccCommand:
		for k := range commandList {
			items = append(items, []rune(k))
		}
	case sccLocal:
		files, err := filepath.Glob(cprefix + "*")
		if err != nil {
			return nil, 0
		}
		for _, v := range files {
			items = append(items, []rune(v))
		}
	}

	var filt [][]rune
	for _, v := range items {
		if hasPrefix(v, []rune(cprefix)) {
			filt = append(filt, shellEscape(v[len([]rune(cprefix)):]))
		}
	}
	return filt, len([]rune(cprefix))
}

func shellMount(sh *shell, args []string) int {
	name, data, err := sh.fetcher.Fetch(context.Background(), args[0])
	if err != nil {
		return sh.errorf("Error: %v\n", err)
	}
	img, err := disk.Open(name, data, sh.opts)
	if err != nil {
		return sh.errorf("Error: %v\n", err)
	}
	slot, err := sh.mount(&mountedImage{Path: args[0], Image: img})
	if err != nil {
		return sh.errorf("Error: %v\n", err)
	}
	sh.target = slot
	fmt.Fprintf(sh.out, "mount disk in slot %d\n", slot)
	if err := img.Err(); err != nil {
		fmt.Fprintf(sh.out, "%v\n", err)
	}
	for _, d := range img.Disks {
		fmt.Fprintf(sh.out, "  %s\n", d)
	}
	return 0
}

func shellUnmount(sh *shell, args []string) int {
	if len(args) > 0 {
		if shellTarget(sh, args) == -1 {
			return -1
		}
	}
	sh.volumes[sh.target] = nil
	fmt.Fprintf(sh.out, "Unmounted volume\n")
	return 0
}

func shellDisks(sh *shell, args []string) int {
	fmt.Fprintln(sh.out, "Mounted Volumes")
	for i, d := range sh.volumes {
		if d != nil {
			fmt.Fprintf(sh.out, "%d:%s\n", i, d.Path)
		}
	}
	return 0
}

func shellTarget(sh *shell, args []string) int {
	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return sh.errorf("Invalid slot number: %s\n", args[0])
	}
	if slot < 0 || slot >= MAXVOL {
		return sh.errorf("Valid slots are %d to %d.\n", 0, MAXVOL-1)
	}
	if sh.volumes[slot] == nil {
		return sh.errorf("Nothing mounted in slot %d (use disks to see mounts)\n", slot)
	}
	sh.target = slot
	return 0
}

func shellInfo(sh *shell, args []string) int {
	m := sh.current()
	report.WriteText(sh.out, report.FromImage(m.Path, m.Image))
	return 0
}

// diskArg parses the optional trailing disk index of sector and block.
func diskArg(args []string, at int) (int, error) {
	if len(args) <= at {
		return -1, nil
	}
	return parseNumber(args[at])
}

func shellSector(sh *shell, args []string) int {
	t, err := parseNumber(args[0])
	if err != nil {
		return sh.errorf("%v\n", err)
	}
	s, err := parseNumber(args[1])
	if err != nil {
		return sh.errorf("%v\n", err)
	}
	n, err := diskArg(args, 2)
	if err != nil {
		return sh.errorf("%v\n", err)
	}
	ts, err := sectorDevice(sh.current().Image, n)
	if err != nil {
		return sh.errorf("%v\n", err)
	}
	data, err := ts.ReadSector(t, s)
	if err != nil {
		return sh.errorf("%v\n", err)
	}
	fmt.Fprint(sh.out, dump(data))
	return 0
}

func shellBlock(sh *shell, args []string) int {
	b, err := parseNumber(args[0])
	if err != nil {
		return sh.errorf("%v\n", err)
	}
	n, err := diskArg(args, 1)
	if err != nil {
		return sh.errorf("%v\n", err)
	}
	bd, err := blockDevice(sh.current().Image, n)
	if err != nil {
		return sh.errorf("%v\n", err)
	}
	data, err := bd.ReadBlock(b)
	if err != nil {
		return sh.errorf("%v\n", err)
	}
	fmt.Fprint(sh.out, dump(data))
	return 0
}

func shellTrack(sh *shell, args []string) int {
	t, err := parseNumber(args[0])
	if err != nil {
		return sh.errorf("%v\n", err)
	}
	img := sh.current().Image
	if img.Tracks == nil {
		return sh.errorf("not a nibble image\n")
	}
	data, err := img.Tracks.ReadTrack(t)
	if err != nil {
		return sh.errorf("%v\n", err)
	}
	fmt.Fprint(sh.out, dump(data))
	return 0
}

func shellMarkers(sh *shell, args []string) int {
	if err := writeMarkers(sh.out, sh.current().Image); err != nil {
		return sh.errorf("%v\n", err)
	}
	return 0
}

func shellHelp(sh *shell, args []string) int {
	if len(args) == 0 {
		keys := make([]string, 0, len(commandList))
		for k := range commandList {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(sh.out, "%-10s %s\n", commandList[k].Name, commandList[k].Description)
		}
		return 0
	}
	command := strings.ToLower(args[0])
	details, ok := commandList[command]
	if !ok || details.Text == nil {
		return sh.errorf("No help available for %s\n", command)
	}
	for _, l := range details.Text {
		fmt.Fprintln(sh.out, l)
	}
	return 0
}

func shellQuit(sh *shell, args []string) int {
	return shellExit
}

func shellCd(sh *shell, args []string) int {
	if len(args) > 0 {
		if err := os.Chdir(args[0]); err != nil {
			return sh.errorf("Change directory failed: %v\n", err)
		}
	}
	wd, _ := os.Getwd()
	fmt.Fprintf(sh.out, "Working directory is now %s\n", wd)
	return 0
}

func shellListFiles(sh *shell, args []string) int {
	if len(args) == 0 {
		wd, _ := os.Getwd()
		args = append(args, filepath.Join(wd, "*"))
	}
	fmt.Fprintf(sh.out, "%8s  %-4s  %s\n", "SIZE", "DISK", "NAME")
	for _, a := range args {
		files, err := filepath.Glob(a)
		if err != nil {
			sh.errorf("Error reading path %s: %v\n", a, err)
			continue
		}
		for _, f := range files {
			fi, err := os.Stat(f)
			if err != nil || fi.IsDir() {
				continue
			}
			kind := ""
			if batch.IsDiskName(fi.Name()) {
				kind = "yes"
			}
			fmt.Fprintf(sh.out, "%8d  %-4s  %s\n", fi.Size(), kind, fi.Name())
		}
	}
	return 0
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".diskprobe")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "shell_history")
}

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell [FILE]",
		Short: "Interactive shell for poking at mounted images",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := identifyOptions(cmd)
			if err != nil {
				return err
			}
			sh := newShell(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if len(args) == 1 {
				sh.process("mount \"" + args[0] + "\"")
			}
			loggy.Get(0).Logf("shell started")
			return sh.run(historyFile())
		},
	}
}
