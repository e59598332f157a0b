package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Scalar data types a dataset column can declare.
const (
	TypeString   = "string"
	TypeInteger  = "integer"
	TypeDecimal  = "decimal"
	TypeDate     = "date"
	TypeDatetime = "datetime"
)

// Column is a typed field declaration in a dataset schema. Columns are
// serialized into the dataset record as a JSON document; the physical
// columns live in the dataset's backing table.
type Column struct {
	Name       string `json:"name"`
	ColumnName string `json:"column_name"`
	DataType   string `json:"data_type"`
	Limit      int    `json:"limit,omitempty"`
	Precision  int    `json:"precision,omitempty"`
	Scale      int    `json:"scale,omitempty"`
}

func (c Column) IsString() bool {
	return c.DataType == TypeString
}

// ColumnList is the ordered column sequence stored as JSONB on the
// datasets table.
type ColumnList []Column

func (l ColumnList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize column list: %w", err)
	}
	return string(b), nil
}

func (l *ColumnList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported column list source type %T", value)
	}
}
