package dataset

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/datashed/datashed/internal/entity"
)

// Service orchestrates dataset lifecycle operations: entity validation
// and persistence, column batches, backing-table reconciliation and
// source-file imports. Every mutating operation runs in a single
// transaction so column changes and table DDL become visible together
// or not at all.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Tables returns a table manager bound to the service's connection, for
// read-only callers (row counts, existence checks).
func (s *Service) Tables() *TableManager {
	return NewTableManager(s.db)
}

// CreateDataset validates and persists a new dataset. Shortname
// uniqueness is scoped to the owning project.
func (s *Service) CreateDataset(ds *entity.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		taken, err := shortnameTaken(tx, ds)
		if err != nil {
			return err
		}
		if taken {
			errs := &entity.ValidationErrors{}
			errs.Add("shortname", "Shortname is already taken in this project")
			return errs
		}
		if err := tx.Create(ds).Error; err != nil {
			return fmt.Errorf("failed to create dataset: %w", err)
		}
		return nil
	})
}

// UpdateDataset validates and persists changes to an existing dataset's
// descriptive fields.
func (s *Service) UpdateDataset(ds *entity.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		taken, err := shortnameTaken(tx, ds)
		if err != nil {
			return err
		}
		if taken {
			errs := &entity.ValidationErrors{}
			errs.Add("shortname", "Shortname is already taken in this project")
			return errs
		}
		if err := tx.Omit(clause.Associations).Save(ds).Error; err != nil {
			return fmt.Errorf("failed to save dataset: %w", err)
		}
		return nil
	})
}

func shortnameTaken(tx *gorm.DB, ds *entity.Dataset) (bool, error) {
	var count int64
	err := tx.Model(&entity.Dataset{}).
		Where("project_id = ? AND shortname = ? AND id <> ?", ds.ProjectID, ds.Shortname, ds.ID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check shortname uniqueness: %w", err)
	}
	return count > 0, nil
}

// UpdateColumns applies a column batch and persists the dataset. When
// the backing table already exists its structure is reconciled in the
// same transaction; otherwise creation stays deferred until first use.
// On failure the in-memory column list is restored.
func (s *Service) UpdateColumns(ds *entity.Dataset, specs []ColumnSpec) error {
	before := append(entity.ColumnList{}, ds.Columns...)
	added := len(before)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := ApplyColumnSpecs(ds, specs); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(ds).Error; err != nil {
			return fmt.Errorf("failed to save dataset: %w", err)
		}

		tm := NewTableManager(tx)
		exists, err := tm.TableExists(ds)
		if err != nil {
			return err
		}
		if exists {
			if err := tm.AlterTable(ds); err != nil {
				return err
			}
		}

		for _, col := range ds.Columns[added:] {
			if err := recordChange(tx, ds, entity.ChangeColumnAdded, col.Name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		ds.SetColumns(before)
		return err
	}
	return nil
}

// DeleteColumns clears the column list, drops the backing table, resets
// every owned source file to the not-yet-imported state and clears the
// last import timestamp, atomically.
func (s *Service) DeleteColumns(ds *entity.Dataset) error {
	before := append(entity.ColumnList{}, ds.Columns...)
	lastImport := ds.LastImportAt

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := NewTableManager(tx).DropTable(ds); err != nil {
			return err
		}
		if err := tx.Model(&entity.SourceFile{}).
			Where("dataset_id = ?", ds.ID).
			Updates(map[string]interface{}{"status": entity.SourceFileStatusNew, "imported_at": nil}).Error; err != nil {
			return fmt.Errorf("failed to reset source files: %w", err)
		}

		ds.SetColumns(nil)
		ds.LastImportAt = nil
		if err := tx.Omit(clause.Associations).Save(ds).Error; err != nil {
			return fmt.Errorf("failed to save dataset: %w", err)
		}
		return recordChange(tx, ds, entity.ChangeColumnsCleared, "")
	})
	if err != nil {
		ds.SetColumns(before)
		ds.LastImportAt = lastImport
		return err
	}

	for i := range ds.SourceFiles {
		ds.SourceFiles[i].ResetNew()
	}
	return nil
}

// DestroyDataset removes the dataset. The entity's delete hook drops
// the backing table and the owned source files before the record goes.
func (s *Service) DestroyDataset(ds *entity.Dataset) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(ds).Error; err != nil {
			return fmt.Errorf("failed to destroy dataset: %w", err)
		}
		return nil
	})
}

// ImportSourceFile reads CSV rows from r into the backing table,
// creating the table lazily on first import. The source file is marked
// imported and the dataset's last import timestamp advanced; on failure
// the file is marked failed instead. Fails if no columns are defined.
func (s *Service) ImportSourceFile(ds *entity.Dataset, sf *entity.SourceFile, r io.Reader) (int64, error) {
	if len(ds.Columns) == 0 {
		return 0, ErrNoColumns
	}

	lastImport := ds.LastImportAt
	var imported int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		tm := NewTableManager(tx)
		if err := tm.CreateOrAlterTable(ds); err != nil {
			return err
		}

		prov := Provenance{Type: "file", Name: sf.Filename, ID: sf.Ordinal}
		n, err := importRows(tm, ds, r, prov)
		if err != nil {
			return err
		}
		imported = n

		now := time.Now()
		sf.Status = entity.SourceFileStatusImported
		sf.ImportedAt = &now
		if err := tx.Save(sf).Error; err != nil {
			return fmt.Errorf("failed to save source file: %w", err)
		}

		ds.LastImportAt = &now
		if err := tx.Omit(clause.Associations).Save(ds).Error; err != nil {
			return fmt.Errorf("failed to save dataset: %w", err)
		}
		return recordChange(tx, ds, entity.ChangeImport, fmt.Sprintf("%s: %d rows", sf.Filename, n))
	})
	if err != nil {
		// the transaction rolled back; the failed status is written
		// outside it so the file does not keep its previous state
		ds.LastImportAt = lastImport
		sf.Status = entity.SourceFileStatusFailed
		sf.ImportedAt = nil
		if saveErr := s.db.Save(sf).Error; saveErr != nil {
			return 0, fmt.Errorf("failed to mark source file failed: %v: %w", saveErr, err)
		}
		return 0, err
	}
	return imported, nil
}

func recordChange(tx *gorm.DB, ds *entity.Dataset, changeType, detail string) error {
	entry := entity.Changelog{
		DatasetID:  ds.ID,
		ChangeType: changeType,
		Detail:     strings.TrimSpace(detail),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record changelog entry: %w", err)
	}
	return nil
}
