package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/datashed/datashed/internal/entity"
)

const importBatchSize = 500

// importRows streams a CSV document into the backing table. The header
// row is matched against column display names; cells under unknown
// headers are ignored, declared columns missing from the file import as
// NULL. Cells that fail to parse as their column's scalar type import
// as NULL rather than aborting the file.
func importRows(tm *TableManager, ds *entity.Dataset, r io.Reader, prov Provenance) (int64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read header row: %w", err)
	}

	// cell index in the file for each declared column, -1 when absent
	indices := make([]int, len(ds.Columns))
	for i, col := range ds.Columns {
		indices[i] = -1
		for j, name := range header {
			if strings.TrimSpace(name) == col.Name {
				indices[i] = j
				break
			}
		}
	}

	var total int64
	batch := make([][]interface{}, 0, importBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := tm.InsertRows(ds, batch, prov); err != nil {
			return err
		}
		total += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("failed to read csv row: %w", err)
		}

		row := make([]interface{}, len(ds.Columns))
		for i, col := range ds.Columns {
			j := indices[i]
			if j < 0 || j >= len(record) {
				continue
			}
			row[i] = coerceCell(col, record[j])
		}
		batch = append(batch, row)
		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// coerceCell converts a raw CSV cell into the column's scalar form.
// Empty and unparseable cells become NULL.
func coerceCell(col entity.Column, raw string) interface{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	switch col.DataType {
	case entity.TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil
		}
		return n
	case entity.TypeDecimal:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil
		}
		return f
	case entity.TypeDate:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil
		}
		return t
	case entity.TypeDatetime:
		t, err := parseDatetime(raw)
		if err != nil {
			return nil
		}
		return t
	default:
		return raw
	}
}
