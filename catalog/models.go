package catalog

import (
	"time"

	"gorm.io/datatypes"
)

// ImageRecord is one identified image file. Path is unique; the same bytes
// found at several paths give several records sharing a SHA256.
type ImageRecord struct {
	ID         uint   `gorm:"primaryKey"`
	Path       string `gorm:"uniqueIndex;type:varchar(1024);not null"`
	Filename   string `gorm:"type:varchar(255)"`
	SHA256     string `gorm:"index;type:char(64);not null"`
	Size       int
	Container  string `gorm:"type:varchar(32)"`
	Scanned    bool
	Unreadable int
	Recognized bool `gorm:"index"`
	// Candidates and Markers are JSON string arrays.
	Candidates datatypes.JSON
	Markers    datatypes.JSON

	Disks []DiskRecord `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ImageRecord) TableName() string {
	return "images"
}

// DiskRecord is one filesystem accepted on an image.
type DiskRecord struct {
	ID          uint   `gorm:"primaryKey"`
	ImageID     uint   `gorm:"index;not null"`
	Family      string `gorm:"index;type:varchar(32)"`
	Format      string `gorm:"type:varchar(64)"`
	SectorOrder string `gorm:"type:varchar(32)"`
	Variant     string `gorm:"type:varchar(16)"`
	VolumeIndex int
	Name        string `gorm:"index;type:varchar(64)"`
	Chain       int
	// Detail holds the full volume summary.
	Detail datatypes.JSON
}

func (DiskRecord) TableName() string {
	return "disks"
}
