package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/paleotronic/diskprobe/disk"
)

// Load reads settings from defaults, an optional config file and
// DISKPROBE_* environment variables. cfgFile may be empty, in which case
// config.yaml is looked up in the working directory and ~/.diskprobe.
func Load(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join(home, ".diskprobe"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("DISKPROBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("log.folder", "")
	viper.SetDefault("log.echo", false)
	viper.SetDefault("log.debug", false)

	viper.SetDefault("identify.order", []string{"dos", "prodos"})
	viper.SetDefault("identify.wide", []string{"unidos", "ozdos"})
	viper.SetDefault("identify.scan", true)
	viper.SetDefault("identify.track_cache", disk.DEFAULT_TRACK_CACHE)

	viper.SetDefault("catalog.driver", "sqlite")
	viper.SetDefault("catalog.dsn", "diskprobe.db")

	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", 24*time.Hour)

	viper.SetDefault("s3.endpoint", "")
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("s3.access_key", "")
	viper.SetDefault("s3.secret_key", "")

	viper.SetDefault("batch.workers", 4)
}

// Options converts the identify.* keys into disk options.
func Options() (disk.Options, error) {
	opts := disk.DefaultOptions()

	if names := viper.GetStringSlice("identify.order"); len(names) > 0 {
		opts.OrderPreference = nil
		for _, n := range names {
			so, err := disk.ParseSectorOrder(n)
			if err != nil {
				return opts, fmt.Errorf("identify.order: %w", err)
			}
			opts.OrderPreference = append(opts.OrderPreference, so)
		}
	}
	if names := viper.GetStringSlice("identify.wide"); len(names) > 0 {
		opts.WidePreference = nil
		for _, n := range names {
			wl, err := disk.ParseWideLayout(n)
			if err != nil {
				return opts, fmt.Errorf("identify.wide: %w", err)
			}
			opts.WidePreference = append(opts.WidePreference, wl)
		}
	}
	opts.ScanProtected = viper.GetBool("identify.scan")
	opts.TrackCache = viper.GetInt("identify.track_cache")
	return opts, nil
}

// Workers is the batch concurrency, never less than one.
func Workers() int {
	if n := viper.GetInt("batch.workers"); n > 0 {
		return n
	}
	return 1
}
