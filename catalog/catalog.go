// Package catalog keeps a relational index of identified disk images.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/paleotronic/diskprobe/report"
)

var ErrNotFound = errors.New("image not in catalog")

type Config struct {
	Driver string // sqlite or postgres
	DSN    string
	Debug  bool
}

type Catalog struct {
	conn *gorm.DB
}

// Open connects and migrates the schema.
func Open(ctx context.Context, cfg Config) (*Catalog, error) {
	var dial gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dial = sqlite.Open(cfg.DSN)
	case "postgres":
		dial = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}

	mode := logger.Silent
	if cfg.Debug {
		mode = logger.Info
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(mode)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "postgres" {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// sqlite allows one writer
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	c := NewWithConn(db)
	if err := c.AutoMigrate(); err != nil {
		return nil, err
	}
	return c, nil
}

func NewWithConn(conn *gorm.DB) *Catalog {
	return &Catalog{conn: conn}
}

func (c *Catalog) AutoMigrate() error {
	if err := c.conn.AutoMigrate(&ImageRecord{}, &DiskRecord{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}

func (c *Catalog) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(d *report.Disk) (*ImageRecord, error) {
	cands, err := json.Marshal(d.Candidates)
	if err != nil {
		return nil, err
	}
	markers, err := json.Marshal(d.Markers)
	if err != nil {
		return nil, err
	}
	rec := &ImageRecord{
		Path:       d.FullPath,
		Filename:   d.Filename,
		SHA256:     d.SHA256,
		Size:       d.Size,
		Container:  d.Container,
		Scanned:    d.Scanned,
		Unreadable: d.Unreadable,
		Recognized: d.Recognized(),
		Candidates: datatypes.JSON(cands),
		Markers:    datatypes.JSON(markers),
	}
	for _, v := range d.Volumes {
		detail, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		rec.Disks = append(rec.Disks, DiskRecord{
			Family:      v.Family,
			Format:      v.Format,
			SectorOrder: v.Order,
			Variant:     v.Variant,
			VolumeIndex: v.Index,
			Name:        v.Name,
			Chain:       v.Chain,
			Detail:      datatypes.JSON(detail),
		})
	}
	return rec, nil
}

// Record stores d, replacing any earlier record for the same path.
func (c *Catalog) Record(ctx context.Context, d *report.Disk) error {
	rec, err := toRecord(d)
	if err != nil {
		return err
	}
	return c.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old ImageRecord
		err := tx.Where("path = ?", rec.Path).First(&old).Error
		switch {
		case err == nil:
			if err := tx.Where("image_id = ?", old.ID).Delete(&DiskRecord{}).Error; err != nil {
				return err
			}
			rec.ID = old.ID
			rec.CreatedAt = old.CreatedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(rec).Error
	})
}

// Find returns the summary recorded for path.
func (c *Catalog) Find(ctx context.Context, path string) (*report.Disk, error) {
	var rec ImageRecord
	err := c.conn.WithContext(ctx).Preload("Disks", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Where("path = ?", path).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(&rec)
}

func fromRecord(rec *ImageRecord) (*report.Disk, error) {
	d := &report.Disk{
		FullPath:   rec.Path,
		Filename:   rec.Filename,
		SHA256:     rec.SHA256,
		Size:       rec.Size,
		Container:  rec.Container,
		Scanned:    rec.Scanned,
		Unreadable: rec.Unreadable,
		Volumes:    []report.Volume{},
	}
	if err := json.Unmarshal(rec.Candidates, &d.Candidates); err != nil {
		return nil, fmt.Errorf("candidates of %s: %w", rec.Path, err)
	}
	if err := json.Unmarshal(rec.Markers, &d.Markers); err != nil {
		return nil, fmt.Errorf("markers of %s: %w", rec.Path, err)
	}
	for _, dr := range rec.Disks {
		var v report.Volume
		if err := json.Unmarshal(dr.Detail, &v); err != nil {
			return nil, fmt.Errorf("disk %d of %s: %w", dr.ID, rec.Path, err)
		}
		d.Volumes = append(d.Volumes, v)
	}
	return d, nil
}

// Paths lists recorded images whose checksum is sha.
func (c *Catalog) Paths(ctx context.Context, sha string) ([]string, error) {
	var paths []string
	err := c.conn.WithContext(ctx).Model(&ImageRecord{}).
		Where("sha256 = ?", sha).Order("path").Pluck("path", &paths).Error
	return paths, err
}

// FamilyCount is the number of volumes recorded per filesystem family.
type FamilyCount struct {
	Family string
	Count  int64
}

func (c *Catalog) Families(ctx context.Context) ([]FamilyCount, error) {
	var out []FamilyCount
	err := c.conn.WithContext(ctx).Model(&DiskRecord{}).
		Select("family, count(*) as count").Group("family").
		Order("family").
		Scan(&out).Error
	return out, err
}

// Duplicates groups recorded paths by image checksum.
func (c *Catalog) Duplicates(ctx context.Context) (*report.DuplicateCollection, error) {
	var recs []ImageRecord
	err := c.conn.WithContext(ctx).Select("path", "sha256").Order("path").Find(&recs).Error
	if err != nil {
		return nil, err
	}
	dc := &report.DuplicateCollection{}
	for _, r := range recs {
		dc.Add(r.SHA256, r.Path)
	}
	return dc, nil
}
