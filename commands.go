package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paleotronic/diskprobe/batch"
	"github.com/paleotronic/diskprobe/cache"
	"github.com/paleotronic/diskprobe/catalog"
	"github.com/paleotronic/diskprobe/config"
	"github.com/paleotronic/diskprobe/loggy"
	"github.com/paleotronic/diskprobe/report"
)

func newIdentifyCmd() *cobra.Command {
	var asJSON, asCBOR, bitmap bool
	cmd := &cobra.Command{
		Use:   "identify FILE...",
		Short: "Identify the filesystems on disk images",
		Long: `Open each image (local path or s3://bucket/key, optionally .gz or .zst
compressed), try every sector ordering its size allows and list the
filesystems found.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asCBOR {
				return errors.New("--json and --cbor are exclusive")
			}
			out := cmd.OutOrStdout()
			var disks []*report.Disk
			var failed int
			for _, loc := range args {
				img, err := openImage(cmd, loc)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", loc, err)
					failed++
					continue
				}
				d := report.FromImage(loc, img)
				disks = append(disks, d)
				if asJSON || asCBOR {
					continue
				}
				report.WriteText(out, d)
				if bitmap {
					if ts := img.SectorDevice(); ts != nil {
						report.WriteBitmap(out, report.Readability(ts))
					}
				}
			}
			switch {
			case asJSON:
				if err := report.WriteJSON(out, disks); err != nil {
					return err
				}
			case asCBOR:
				if err := report.WriteCBOR(out, disks); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d images could not be opened", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&asCBOR, "cbor", false, "write results as CBOR")
	cmd.Flags().BoolVar(&bitmap, "bitmap", false, "print which sectors read back")
	return cmd
}

func openCatalog(ctx context.Context) (*catalog.Catalog, error) {
	return catalog.Open(ctx, catalog.Config{
		Driver: viper.GetString("catalog.driver"),
		DSN:    viper.GetString("catalog.dsn"),
		Debug:  viper.GetBool("log.debug"),
	})
}

func newIngestCmd() *cobra.Command {
	var noCatalog, progress bool
	cmd := &cobra.Command{
		Use:   "ingest DIR",
		Short: "Identify every disk image under a directory and record the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := identifyOptions(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				n, _ := cmd.Flags().GetInt("workers")
				viper.Set("batch.workers", n)
			}
			ing := &batch.Ingestor{
				Options: opts,
				Workers: config.Workers(),
			}
			if progress {
				ing.Progress = cmd.ErrOrStderr()
			}

			if !noCatalog {
				c, err := openCatalog(ctx)
				if err != nil {
					return err
				}
				defer c.Close()
				ing.Catalog = c
			}
			if url := viper.GetString("cache.redis_url"); url != "" {
				rc, err := cache.New(ctx, cache.Config{RedisURL: url, TTL: viper.GetDuration("cache.ttl")})
				if err != nil {
					// run uncached rather than not at all
					loggy.Get(0).Errorf("cache disabled: %v", err)
					fmt.Fprintf(cmd.ErrOrStderr(), "cache disabled: %v\n", err)
				} else {
					defer rc.Close()
					ing.Cache = rc
				}
			}

			st, err := ing.Ingest(ctx, args[0])
			if st != nil {
				st.Report(cmd.OutOrStdout())
			}
			return err
		},
	}
	cmd.Flags().Int("workers", 4, "number of images identified at once")
	cmd.Flags().BoolVar(&noCatalog, "no-catalog", false, "do not record results in the catalog")
	cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar")
	return cmd
}

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup PATH...",
		Short: "Show what the catalog recorded for ingested images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			for _, p := range args {
				d, err := c.Find(cmd.Context(), p)
				if err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}
				report.WriteText(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}

func newDupesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dupes",
		Short: "Report catalogued images that are byte for byte identical",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			dc, err := c.Duplicates(cmd.Context())
			if err != nil {
				return err
			}
			dc.Report(cmd.OutOrStdout())

			fams, err := c.Families(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			for _, f := range fams {
				fmt.Fprintf(cmd.OutOrStdout(), "%-30s %6d\n", f.Family, f.Count)
			}
			return nil
		},
	}
}
