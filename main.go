package main

/*
diskprobe decodes Apple ][ disk images (raw sector dumps, 2IMG, DiskCopy
4.2, NIB and WOZ) down to sectors and blocks, and works out which
filesystems they carry.

Besides one-off identification and dumping it can ingest a whole archive
into a catalog database and report duplicate images.
*/

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paleotronic/diskprobe/config"
	"github.com/paleotronic/diskprobe/disk"
	"github.com/paleotronic/diskprobe/fetch"
	"github.com/paleotronic/diskprobe/loggy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		loggy.Close()
		os.Exit(1)
	}
	loggy.Close()
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "diskprobe",
		Short:         "Identify and inspect Apple ][ disk images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(cfgFile); err != nil {
				return err
			}
			return initLogging()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.diskprobe/config.yaml)")
	pf.String("log-folder", "", "write a log file to this folder")
	pf.Bool("verbose", false, "log to stderr")
	pf.Bool("debug", false, "log debug detail")
	pf.Bool("no-scan", false, "do not scan nibble images for non-standard framing")
	for key, flag := range map[string]string{
		"log.folder": "log-folder",
		"log.echo":   "verbose",
		"log.debug":  "debug",
	} {
		if err := viper.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		newIdentifyCmd(),
		newIngestCmd(),
		newLookupCmd(),
		newDupesCmd(),
		newSectorCmd(),
		newBlockCmd(),
		newTrackCmd(),
		newMarkersCmd(),
		newNibblizeCmd(),
		newShellCmd(),
	)
	return root
}

func initLogging() error {
	loggy.ECHO = viper.GetBool("log.echo")
	loggy.SetDebug(viper.GetBool("log.debug"))
	if folder := viper.GetString("log.folder"); folder != "" {
		loggy.LogFolder = folder
		return loggy.Init("diskprobe")
	}
	return nil
}

// identifyOptions reads the identify.* settings, letting --no-scan win.
func identifyOptions(cmd *cobra.Command) (disk.Options, error) {
	opts, err := config.Options()
	if err != nil {
		return opts, err
	}
	if noScan, _ := cmd.Flags().GetBool("no-scan"); noScan {
		opts.ScanProtected = false
	}
	return opts, nil
}

// newFetcher only builds an S3 client when one of the locations needs it.
func newFetcher(ctx context.Context, locs ...string) (*fetch.Fetcher, error) {
	f := &fetch.Fetcher{}
	for _, loc := range locs {
		if _, _, ok := fetch.ParseS3(loc); !ok {
			continue
		}
		client, err := fetch.NewS3Client(ctx, fetch.S3Config{
			Endpoint:        viper.GetString("s3.endpoint"),
			Region:          viper.GetString("s3.region"),
			AccessKeyID:     viper.GetString("s3.access_key"),
			SecretAccessKey: viper.GetString("s3.secret_key"),
		})
		if err != nil {
			return nil, err
		}
		f.S3 = client
		break
	}
	return f, nil
}

// openImage fetches and identifies one location.
func openImage(cmd *cobra.Command, loc string) (*disk.Image, error) {
	opts, err := identifyOptions(cmd)
	if err != nil {
		return nil, err
	}
	f, err := newFetcher(cmd.Context(), loc)
	if err != nil {
		return nil, err
	}
	name, data, err := f.Fetch(cmd.Context(), loc)
	if err != nil {
		return nil, err
	}
	return disk.Open(name, data, opts)
}
