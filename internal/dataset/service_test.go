package dataset

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datashed/datashed/internal/entity"
)

func TestCreateDatasetRejectsInvalidEntity(t *testing.T) {
	db, mock := newMockDB(t)
	ds := &entity.Dataset{Shortname: "ab", Name: ""}

	err := NewService(db).CreateDataset(ds)

	require.Error(t, err)
	assert.True(t, entity.IsValidationError(err))
	// no transaction was opened for an invalid entity
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDatasetRejectsDuplicateShortname(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "datasets"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := NewService(db).CreateDataset(ds)

	require.Error(t, err)
	require.True(t, entity.IsValidationError(err))
	assert.Contains(t, err.(*entity.ValidationErrors).Messages(), "Shortname is already taken in this project")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateColumnsRollsBackInMemoryStateOnValidationError(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := NewService(db).UpdateColumns(ds, []ColumnSpec{
		{Name: "Region", DataType: "string"},
		{Name: "", DataType: "string"},
	})

	require.Error(t, err)
	assert.True(t, entity.IsValidationError(err))
	// the in-memory column list is restored on failure
	require.Len(t, ds.Columns, 1)
	assert.Equal(t, "City", ds.Columns[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDatasetAllowsSameShortnameAcrossProjects(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "datasets"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "datasets"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(ds.ID.String()))
	mock.ExpectCommit()

	require.NoError(t, NewService(db).CreateDataset(ds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateColumnsReconcilesExistingTable(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "datasets" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// the existence probe runs exactly once per reconcile
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM information_schema.tables`)).
		WithArgs(ds.BackingTableName()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT column_name FROM information_schema.columns`)).
		WithArgs(ds.BackingTableName()).
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
			AddRow("city").AddRow("source_type").AddRow("source_name").AddRow("source_id"))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "dataset_9f1c2b3456784abc9def0123456789ab" ADD COLUMN "region" varchar(255)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "changelogs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
	mock.ExpectCommit()

	err := NewService(db).UpdateColumns(ds, []ColumnSpec{{Name: "Region", DataType: "string"}})

	require.NoError(t, err)
	require.Len(t, ds.Columns, 2)
	assert.Equal(t, "region", ds.Columns[1].ColumnName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteColumnsResetsDatasetState(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})
	now := time.Now()
	ds.LastImportAt = &now
	ds.SourceFiles = []entity.SourceFile{
		{ID: uuid.New(), Status: entity.SourceFileStatusImported, ImportedAt: &now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "dataset_9f1c2b3456784abc9def0123456789ab"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "source_files" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "datasets" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "changelogs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
	mock.ExpectCommit()

	require.NoError(t, NewService(db).DeleteColumns(ds))

	assert.Empty(t, ds.Columns)
	assert.Nil(t, ds.LastImportAt)
	assert.Equal(t, entity.SourceFileStatusNew, ds.SourceFiles[0].Status)
	assert.Nil(t, ds.SourceFiles[0].ImportedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteColumnsRestoresStateOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})
	now := time.Now()
	ds.LastImportAt = &now
	ds.SourceFiles = []entity.SourceFile{
		{ID: uuid.New(), Status: entity.SourceFileStatusImported, ImportedAt: &now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS`)).
		WillReturnError(errors.New("drop failed"))
	mock.ExpectRollback()

	err := NewService(db).DeleteColumns(ds)

	require.Error(t, err)
	require.Len(t, ds.Columns, 1)
	assert.NotNil(t, ds.LastImportAt)
	assert.Equal(t, entity.SourceFileStatusImported, ds.SourceFiles[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDestroyDatasetDropsBackingTable(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "dataset_9f1c2b3456784abc9def0123456789ab"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "source_files" SET "deleted_at"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "datasets" SET "deleted_at"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewService(db).DestroyDataset(ds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportSourceFileMarksFailedOnError(t *testing.T) {
	db, mock := newMockDB(t)
	ds := testDataset(entity.Column{Name: "City", ColumnName: "city", DataType: entity.TypeString})
	sf := &entity.SourceFile{
		ID:        uuid.New(),
		DatasetID: ds.ID,
		Filename:  "cities.csv",
		Ordinal:   1,
		Status:    entity.SourceFileStatusNew,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM information_schema.tables`)).
		WithArgs(ds.BackingTableName()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE`)).
		WillReturnError(errors.New("create failed"))
	mock.ExpectRollback()
	// the failed status is written outside the rolled-back transaction
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "source_files" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := NewService(db).ImportSourceFile(ds, sf, strings.NewReader("City\nParis\n"))

	require.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, entity.SourceFileStatusFailed, sf.Status)
	assert.Nil(t, sf.ImportedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportSourceFileRequiresColumns(t *testing.T) {
	db, _ := newMockDB(t)
	ds := testDataset()
	sf := &entity.SourceFile{Filename: "cities.csv", Ordinal: 1}

	_, err := NewService(db).ImportSourceFile(ds, sf, nil)

	assert.ErrorIs(t, err, ErrNoColumns)
}
