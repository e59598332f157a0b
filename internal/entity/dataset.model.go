package entity

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var shortnamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// Dataset is a user-defined tabular schema. Its typed columns are
// serialized into the record itself; row data lives in a physical
// backing table named after the dataset's id.
type Dataset struct {
	gorm.Model
	ID           uuid.UUID    `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primary_key"`
	ProjectID    uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_dataset_shortname_project" json:"project_id"`
	Shortname    string       `gorm:"type:varchar(40);not null;uniqueIndex:idx_dataset_shortname_project" json:"shortname"`
	Name         string       `gorm:"type:varchar(255);not null" json:"name"`
	Description  string       `gorm:"type:text" json:"description"`
	SourceURL    string       `gorm:"type:varchar(255)" json:"source_url"`
	LastImportAt *time.Time   `json:"last_import_at"`
	Columns      ColumnList   `gorm:"type:jsonb;default:'[]'" json:"columns"`
	SourceFiles  []SourceFile `gorm:"foreignKey:DatasetID" json:"source_files"`

	columnNames  []string
	storageNames []string
}

// BackingTableName is the deterministic physical table name for this
// dataset's rows. Hyphens are stripped so the name stays a plain
// identifier on any backend.
func (d *Dataset) BackingTableName() string {
	return "dataset_" + strings.ReplaceAll(d.ID.String(), "-", "")
}

// SetColumns replaces the column list and invalidates the memoized
// name accessors.
func (d *Dataset) SetColumns(columns ColumnList) {
	d.Columns = columns
	d.columnNames = nil
	d.storageNames = nil
}

// ColumnNames returns display names in declared order.
func (d *Dataset) ColumnNames() []string {
	if d.columnNames == nil {
		d.columnNames = make([]string, 0, len(d.Columns))
		for _, c := range d.Columns {
			d.columnNames = append(d.columnNames, c.Name)
		}
	}
	return d.columnNames
}

// StorageColumnNames returns generated storage identifiers in declared
// order.
func (d *Dataset) StorageColumnNames() []string {
	if d.storageNames == nil {
		d.storageNames = make([]string, 0, len(d.Columns))
		for _, c := range d.Columns {
			d.storageNames = append(d.storageNames, c.ColumnName)
		}
	}
	return d.storageNames
}

// ColumnByName resolves a column definition by its display name.
func (d *Dataset) ColumnByName(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.ColumnByName(name)
	return ok
}

// Validate checks the entity-level invariants. Shortname uniqueness per
// project needs a database lookup and is enforced by the dataset
// service.
func (d *Dataset) Validate() error {
	errs := &ValidationErrors{}
	if strings.TrimSpace(d.Name) == "" {
		errs.Add("name", "Name cannot be blank")
	}
	switch {
	case strings.TrimSpace(d.Shortname) == "":
		errs.Add("shortname", "Shortname cannot be blank")
	case len(d.Shortname) < 4 || len(d.Shortname) > 40:
		errs.Add("shortname", "Shortname must be between 4 and 40 characters")
	case !shortnamePattern.MatchString(d.Shortname):
		errs.Add("shortname", "Shortname may only contain letters, digits, hyphens and underscores")
	}
	if errs.Any() {
		return errs
	}
	return nil
}

// BeforeDelete drops the backing table and removes owned source files
// inside the destroy transaction, so a destroyed dataset never leaves a
// physical table behind.
func (d *Dataset) BeforeDelete(tx *gorm.DB) error {
	table := strings.ReplaceAll(d.BackingTableName(), `"`, `""`)
	if err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table)).Error; err != nil {
		return fmt.Errorf("failed to drop backing table: %w", err)
	}
	if err := tx.Where("dataset_id = ?", d.ID).Delete(&SourceFile{}).Error; err != nil {
		return fmt.Errorf("failed to delete source files: %w", err)
	}
	return nil
}
