package entity

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Schema change kinds recorded against a dataset.
const (
	ChangeColumnAdded    = "column_added"
	ChangeColumnsCleared = "columns_cleared"
	ChangeImport         = "import"
)

// Changelog records a schema or import event on a dataset.
type Changelog struct {
	gorm.Model
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primary_key" json:"id"`
	DatasetID  uuid.UUID `gorm:"type:uuid;not null" json:"dataset_id"`
	ChangeType string    `gorm:"type:varchar(100)" json:"change_type"`
	Detail     string    `gorm:"type:text" json:"detail"`
}
