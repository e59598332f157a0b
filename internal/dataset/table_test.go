package dataset

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/datashed/datashed/internal/entity"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, mock
}

func testDataset(columns ...entity.Column) *entity.Dataset {
	ds := &entity.Dataset{
		ID:        uuid.MustParse("9f1c2b34-5678-4abc-9def-0123456789ab"),
		ProjectID: uuid.New(),
		Shortname: "cities",
		Name:      "Cities",
	}
	ds.SetColumns(columns)
	return ds
}

func TestCreateTableSQL(t *testing.T) {
	ds := testDataset(
		entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString},
		entity.Column{Name: "Population", ColumnName: "population", DataType: entity.TypeInteger},
		entity.Column{Name: "Price", ColumnName: "price", DataType: entity.TypeDecimal, Precision: 10, Scale: 2},
		entity.Column{Name: "Founded", ColumnName: "founded", DataType: entity.TypeDate},
		entity.Column{Name: "Updated", ColumnName: "updated", DataType: entity.TypeDatetime},
	)

	stmt, err := CreateTableSQL(ds)

	require.NoError(t, err)
	assert.Equal(t,
		`CREATE TABLE "dataset_9f1c2b3456784abc9def0123456789ab" (`+
			`"city" varchar(255), "population" bigint, "price" numeric(10,2), `+
			`"founded" date, "updated" timestamp, `+
			`"source_type" varchar(30), "source_name" varchar(255), "source_id" integer)`,
		stmt)
}

func TestCreateTableSQLRespectsLimit(t *testing.T) {
	ds := testDataset(entity.Column{Name: "Code", ColumnName: "code", DataType: entity.TypeString, Limit: 8})

	stmt, err := CreateTableSQL(ds)

	require.NoError(t, err)
	assert.Contains(t, stmt, `"code" varchar(8)`)
}

func TestCreateTableSQLRequiresColumns(t *testing.T) {
	ds := testDataset()

	_, err := CreateTableSQL(ds)

	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestAlterTableSQLReconciles(t *testing.T) {
	ds := testDataset(
		entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString},
		entity.Column{Name: "Region", ColumnName: "region", DataType: entity.TypeString},
	)
	existing := map[string]bool{
		"city":        true,
		"obsolete_a":  true,
		"obsolete_b":  true,
		"source_type": true,
		"source_name": true,
		"source_id":   true,
	}

	stmts := AlterTableSQL(ds, existing)

	require.Len(t, stmts, 3)
	assert.Equal(t, `ALTER TABLE "dataset_9f1c2b3456784abc9def0123456789ab" ADD COLUMN "region" varchar(255)`, stmts[0])
	assert.Equal(t, `ALTER TABLE "dataset_9f1c2b3456784abc9def0123456789ab" DROP COLUMN "obsolete_a"`, stmts[1])
	assert.Equal(t, `ALTER TABLE "dataset_9f1c2b3456784abc9def0123456789ab" DROP COLUMN "obsolete_b"`, stmts[2])
}

func TestAlterTableSQLNeverDropsProvenance(t *testing.T) {
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})
	existing := map[string]bool{
		"city":        true,
		"source_type": true,
		"source_name": true,
		"source_id":   true,
	}

	assert.Empty(t, AlterTableSQL(ds, existing))
}

func TestTableExists(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM information_schema.tables`)).
		WithArgs(ds.BackingTableName()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := NewTableManager(db).TableExists(ds)

	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableExistsAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM information_schema.tables`)).
		WithArgs(ds.BackingTableName()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	exists, err := NewTableManager(db).TableExists(ds)

	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRowCount(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "dataset_9f1c2b3456784abc9def0123456789ab"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := NewTableManager(db).RowCount(ds)

	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestDropTableIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset()

	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "dataset_9f1c2b3456784abc9def0123456789ab"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewTableManager(db).DropTable(ds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrAlterTableRequiresColumns(t *testing.T) {
	db, _ := newMockDB(t)
	ds := testDataset()

	err := NewTableManager(db).CreateOrAlterTable(ds)

	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestCreateOrAlterTableCreatesWhenAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM information_schema.tables`)).
		WithArgs(ds.BackingTableName()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "dataset_9f1c2b3456784abc9def0123456789ab"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewTableManager(db).CreateOrAlterTable(ds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRows(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset(
		entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString},
		entity.Column{Name: "Population", ColumnName: "population", DataType: entity.TypeInteger},
	)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO "dataset_9f1c2b3456784abc9def0123456789ab" ("city", "population", "source_type", "source_name", "source_id") VALUES`,
	)).
		WithArgs("Paris", int64(2161000), "file", "cities.csv", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewTableManager(db).InsertRows(ds,
		[][]interface{}{{"Paris", int64(2161000)}},
		Provenance{Type: "file", Name: "cities.csv", ID: 1},
	)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRowsRejectsWidthMismatch(t *testing.T) {
	db, _ := newMockDB(t)
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})

	err := NewTableManager(db).InsertRows(ds,
		[][]interface{}{{"Paris", "extra"}},
		Provenance{Type: "file", Name: "cities.csv", ID: 1},
	)

	assert.Error(t, err)
}
