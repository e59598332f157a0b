package dataset

import (
	"fmt"
	"strings"

	"github.com/datashed/datashed/internal/entity"
)

// ColumnSpec is a caller-supplied candidate column definition. Anything
// beyond the recognized fields is discarded during normalization.
type ColumnSpec struct {
	Name      string `json:"name"`
	DataType  string `json:"data_type"`
	Limit     int    `json:"limit"`
	Precision int    `json:"precision"`
	Scale     int    `json:"scale"`
}

// Accepted data type aliases and their canonical tags.
var dataTypeTags = map[string]string{
	"string":    entity.TypeString,
	"text":      entity.TypeString,
	"varchar":   entity.TypeString,
	"integer":   entity.TypeInteger,
	"int":       entity.TypeInteger,
	"decimal":   entity.TypeDecimal,
	"numeric":   entity.TypeDecimal,
	"float":     entity.TypeDecimal,
	"date":      entity.TypeDate,
	"datetime":  entity.TypeDatetime,
	"timestamp": entity.TypeDatetime,
}

// CanonicalDataType normalizes a declared type to its canonical scalar
// tag. Unrecognized types fall back to string.
func CanonicalDataType(dataType string) string {
	if tag, ok := dataTypeTags[strings.ToLower(strings.TrimSpace(dataType))]; ok {
		return tag
	}
	return entity.TypeString
}

// ApplyColumnSpecs validates the batch and appends the new columns to
// the dataset's in-memory column list. Either every spec is applied or
// none: an invalid spec rejects the whole batch with a validation error
// and the existing list stays untouched. Specs whose display name
// already exists are silently skipped.
func ApplyColumnSpecs(ds *entity.Dataset, specs []ColumnSpec) error {
	errs := &entity.ValidationErrors{}
	for i, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			errs.Add("columns", fmt.Sprintf("Column %d does not have column name", i+1))
			continue
		}
		if strings.TrimSpace(spec.DataType) == "" {
			errs.Add("columns", fmt.Sprintf("Column %s does not have data type", spec.Name))
		}
	}
	if errs.Any() {
		return errs
	}

	columns := append(entity.ColumnList{}, ds.Columns...)
	taken := make(map[string]bool, len(columns))
	for _, c := range columns {
		taken[c.ColumnName] = true
	}

	for _, spec := range specs {
		if hasDisplayName(columns, spec.Name) {
			continue
		}
		columns = append(columns, entity.Column{
			Name:       spec.Name,
			ColumnName: StorageColumnName(spec.Name, taken),
			DataType:   CanonicalDataType(spec.DataType),
			Limit:      spec.Limit,
			Precision:  spec.Precision,
			Scale:      spec.Scale,
		})
	}

	ds.SetColumns(columns)
	return nil
}

func hasDisplayName(columns entity.ColumnList, name string) bool {
	for _, c := range columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// StorageColumnName derives a storage-safe identifier from a display
// name and reserves it in taken. Generation is deterministic for a
// given name and set of reserved identifiers; collisions get a numeric
// suffix.
func StorageColumnName(name string, taken map[string]bool) string {
	base := sanitizeIdentifier(name)
	candidate := base
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
	taken[candidate] = true
	return candidate
}

func sanitizeIdentifier(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		s = "col"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "c_" + s
	}
	// Postgres identifiers cap at 63 bytes; leave room for suffixes.
	if len(s) > 56 {
		s = s[:56]
	}
	return s
}
