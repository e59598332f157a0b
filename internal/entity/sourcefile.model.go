package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Import states of a source file.
const (
	SourceFileStatusNew      = "new"
	SourceFileStatusImported = "imported"
	SourceFileStatusFailed   = "failed"
)

// SourceFile is an uploaded file contributing rows to a dataset's
// backing table. The Ordinal is the file's position within the dataset
// and is recorded as the source id on every imported row.
type SourceFile struct {
	gorm.Model
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primary_key" json:"id"`
	DatasetID   uuid.UUID  `gorm:"type:uuid;not null" json:"dataset_id"`
	Filename    string     `gorm:"type:varchar(255);not null" json:"filename"`
	ContentType string     `gorm:"type:varchar(100)" json:"content_type"`
	Size        int64      `gorm:"type:bigint" json:"size"`
	URL         string     `gorm:"type:text;not null" json:"url"`
	Status      string     `gorm:"type:varchar(20);default:'new'" json:"status"`
	Ordinal     int        `gorm:"type:integer;not null" json:"ordinal"`
	ImportedAt  *time.Time `json:"imported_at"`
}

// ResetNew marks the file as needing a fresh import.
func (f *SourceFile) ResetNew() {
	f.Status = SourceFileStatusNew
	f.ImportedAt = nil
}
