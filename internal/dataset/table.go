package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/datashed/datashed/internal/entity"
)

// ErrNoColumns is returned when a backing table is requested for a
// dataset without any column definitions.
var ErrNoColumns = errors.New("dataset has no columns defined")

// Provenance columns present on every backing table alongside the
// declared columns. They record where each imported row came from.
const (
	provSourceType = "source_type"
	provSourceName = "source_name"
	provSourceID   = "source_id"
)

// Provenance identifies the origin of a batch of imported rows.
type Provenance struct {
	Type string
	Name string
	ID   int
}

// TableManager performs DDL and row-level operations on a dataset's
// backing table. Identifiers are always quoted; values only ever travel
// as bind parameters.
type TableManager struct {
	db *gorm.DB
}

func NewTableManager(db *gorm.DB) *TableManager {
	return &TableManager{db: db}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableExists checks the storage backend for the dataset's backing
// table.
func (m *TableManager) TableExists(ds *entity.Dataset) (bool, error) {
	var count int64
	err := m.db.Raw(
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`,
		ds.BackingTableName(),
	).Scan(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check backing table: %w", err)
	}
	return count > 0, nil
}

// CreateOrAlterTable materializes the backing table, or reconciles an
// existing one to the current column list. Fails if no columns are
// defined.
func (m *TableManager) CreateOrAlterTable(ds *entity.Dataset) error {
	if len(ds.Columns) == 0 {
		return ErrNoColumns
	}

	exists, err := m.TableExists(ds)
	if err != nil {
		return err
	}

	if !exists {
		return m.CreateTable(ds)
	}
	return m.AlterTable(ds)
}

// CreateTable materializes the backing table for the current column
// list.
func (m *TableManager) CreateTable(ds *entity.Dataset) error {
	stmt, err := CreateTableSQL(ds)
	if err != nil {
		return err
	}
	if err := m.db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to create backing table: %w", err)
	}
	return nil
}

// AlterTable reconciles an existing backing table to the current
// column list. The caller is responsible for knowing the table exists.
func (m *TableManager) AlterTable(ds *entity.Dataset) error {
	existing, err := m.physicalColumns(ds)
	if err != nil {
		return err
	}
	for _, stmt := range AlterTableSQL(ds, existing) {
		if err := m.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to alter backing table: %w", err)
		}
	}
	return nil
}

// DropTable removes the backing table. Dropping a table that does not
// exist is not an error.
func (m *TableManager) DropTable(ds *entity.Dataset) error {
	stmt := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(ds.BackingTableName()))
	if err := m.db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to drop backing table: %w", err)
	}
	return nil
}

// RowCount reports the number of rows currently in the backing table.
func (m *TableManager) RowCount(ds *entity.Dataset) (int64, error) {
	var count int64
	stmt := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(ds.BackingTableName()))
	if err := m.db.Raw(stmt).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}

// InsertRows appends rows to the backing table. Each row's cells must
// follow the declared column order; the provenance values are attached
// to every row.
func (m *TableManager) InsertRows(ds *entity.Dataset, rows [][]interface{}, prov Provenance) error {
	if len(rows) == 0 {
		return nil
	}

	idents := make([]string, 0, len(ds.Columns)+3)
	for _, name := range ds.StorageColumnNames() {
		idents = append(idents, quoteIdent(name))
	}
	idents = append(idents, quoteIdent(provSourceType), quoteIdent(provSourceName), quoteIdent(provSourceID))

	width := len(idents)
	placeholderRow := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"

	placeholders := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*width)
	for _, row := range rows {
		if len(row) != len(ds.Columns) {
			return fmt.Errorf("row has %d cells, dataset declares %d columns", len(row), len(ds.Columns))
		}
		placeholders = append(placeholders, placeholderRow)
		args = append(args, row...)
		args = append(args, prov.Type, prov.Name, prov.ID)
	}

	stmt := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES %s`,
		quoteIdent(ds.BackingTableName()),
		strings.Join(idents, ", "),
		strings.Join(placeholders, ", "),
	)
	if err := m.db.Exec(stmt, args...).Error; err != nil {
		return fmt.Errorf("failed to insert rows: %w", err)
	}
	return nil
}

func (m *TableManager) physicalColumns(ds *entity.Dataset) (map[string]bool, error) {
	var names []string
	err := m.db.Raw(
		`SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?`,
		ds.BackingTableName(),
	).Scan(&names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read backing table columns: %w", err)
	}
	existing := make(map[string]bool, len(names))
	for _, n := range names {
		existing[n] = true
	}
	return existing, nil
}

// CreateTableSQL renders the CREATE TABLE statement for the dataset's
// current column list plus the provenance columns. The table carries no
// implicit primary key.
func CreateTableSQL(ds *entity.Dataset) (string, error) {
	if len(ds.Columns) == 0 {
		return "", ErrNoColumns
	}
	defs := make([]string, 0, len(ds.Columns)+3)
	for _, col := range ds.Columns {
		defs = append(defs, quoteIdent(col.ColumnName)+" "+columnTypeSQL(col))
	}
	defs = append(defs,
		quoteIdent(provSourceType)+" varchar(30)",
		quoteIdent(provSourceName)+" varchar(255)",
		quoteIdent(provSourceID)+" integer",
	)
	return fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(ds.BackingTableName()), strings.Join(defs, ", ")), nil
}

// AlterTableSQL renders the ALTER statements reconciling an existing
// physical column set to the declared one: missing columns are added,
// undeclared ones dropped. Provenance columns are never dropped.
func AlterTableSQL(ds *entity.Dataset, existing map[string]bool) []string {
	table := quoteIdent(ds.BackingTableName())
	declared := map[string]bool{
		provSourceType: true,
		provSourceName: true,
		provSourceID:   true,
	}

	var stmts []string
	for _, col := range ds.Columns {
		declared[col.ColumnName] = true
		if !existing[col.ColumnName] {
			stmts = append(stmts, fmt.Sprintf(
				`ALTER TABLE %s ADD COLUMN %s %s`, table, quoteIdent(col.ColumnName), columnTypeSQL(col),
			))
		}
	}
	var drops []string
	for name := range existing {
		if !declared[name] {
			drops = append(drops, name)
		}
	}
	sort.Strings(drops)
	for _, name := range drops {
		stmts = append(stmts, fmt.Sprintf(
			`ALTER TABLE %s DROP COLUMN %s`, table, quoteIdent(name),
		))
	}
	return stmts
}

func columnTypeSQL(col entity.Column) string {
	switch col.DataType {
	case entity.TypeInteger:
		return "bigint"
	case entity.TypeDecimal:
		if col.Precision > 0 {
			scale := col.Scale
			if scale < 0 {
				scale = 0
			}
			return fmt.Sprintf("numeric(%d,%d)", col.Precision, scale)
		}
		return "numeric"
	case entity.TypeDate:
		return "date"
	case entity.TypeDatetime:
		return "timestamp"
	default:
		limit := col.Limit
		if limit <= 0 {
			limit = 255
		}
		return fmt.Sprintf("varchar(%d)", limit)
	}
}
