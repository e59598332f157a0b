package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/datashed/datashed/internal/entity"
)

// Pagination defaults.
const (
	DefaultPage    = 1
	DefaultPerPage = 10
)

// SearchParams carries the sort and pagination parameters of a search
// request. Sort names a column by its display name; unknown names leave
// the result unordered.
type SearchParams struct {
	Sort          string
	SortDirection string
	Page          int
	PerPage       int
}

// SearchResult is a page of matching rows plus the total match count
// computed from the same predicate without pagination.
type SearchResult struct {
	Columns      []string                 `json:"columns"`
	Rows         []map[string]interface{} `json:"rows"`
	TotalResults int64                    `json:"total_results"`
}

// predicate is one compiled boolean condition with its bind arguments.
// Predicates are ANDed together; OR only occurs inside a single
// predicate when an any-column term expands across string columns.
type predicate struct {
	sql  string
	args []interface{}
}

// Search runs the query string against the dataset's backing table and
// returns the requested page of rows together with the total match
// count. User input never reaches the statement text directly.
func Search(db *gorm.DB, ds *entity.Dataset, query string, params SearchParams) (*SearchResult, error) {
	if len(ds.Columns) == 0 {
		return nil, ErrNoColumns
	}
	compiled := compileSearch(ds, query, params)

	var total int64
	if err := db.Raw(compiled.countSQL, compiled.args...).Scan(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	rows, err := db.Raw(compiled.selectSQL, compiled.args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer rows.Close()

	result := &SearchResult{
		Columns:      ds.ColumnNames(),
		Rows:         []map[string]interface{}{},
		TotalResults: total,
	}

	for rows.Next() {
		cells := make([]interface{}, len(ds.Columns))
		ptrs := make([]interface{}, len(ds.Columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		row := make(map[string]interface{}, len(ds.Columns))
		for i, col := range ds.Columns {
			row[col.Name] = normalizeCell(cells[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search rows: %w", err)
	}
	return result, nil
}

type compiledSearch struct {
	selectSQL string
	countSQL  string
	args      []interface{}
}

func compileSearch(ds *entity.Dataset, query string, params SearchParams) compiledSearch {
	preds := buildPredicates(ds, ParseQuery(query))

	var where string
	var args []interface{}
	if len(preds) > 0 {
		parts := make([]string, 0, len(preds))
		for _, p := range preds {
			parts = append(parts, p.sql)
			args = append(args, p.args...)
		}
		where = " WHERE " + strings.Join(parts, " AND ")
	}

	table := quoteIdent(ds.BackingTableName())
	idents := make([]string, 0, len(ds.Columns))
	for _, name := range ds.StorageColumnNames() {
		idents = append(idents, quoteIdent(name))
	}

	selectSQL := "SELECT " + strings.Join(idents, ", ") + " FROM " + table + where

	if col, ok := ds.ColumnByName(params.Sort); ok {
		direction := "ASC"
		if strings.EqualFold(params.SortDirection, "desc") {
			direction = "DESC"
		}
		selectSQL += " ORDER BY " + quoteIdent(col.ColumnName) + " " + direction
	}

	page := params.Page
	if page < 1 {
		page = DefaultPage
	}
	perPage := params.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	selectSQL += fmt.Sprintf(" LIMIT %d OFFSET %d", perPage, (page-1)*perPage)

	return compiledSearch{
		selectSQL: selectSQL,
		countSQL:  "SELECT COUNT(*) FROM " + table + where,
		args:      args,
	}
}

// buildPredicates translates parsed conditions into compiled ones. Any-
// column terms expand to an OR across the string-typed columns; terms
// bound to an unknown attribute, and values that do not parse as the
// column's scalar type, contribute no predicate.
func buildPredicates(ds *entity.Dataset, conditions []Condition) []predicate {
	var preds []predicate
	for _, cond := range conditions {
		if cond.Attribute == AnyColumn {
			var parts []string
			var args []interface{}
			for _, col := range ds.Columns {
				if !col.IsString() {
					continue
				}
				p, ok := containsPredicate(col, cond.Value)
				if !ok {
					continue
				}
				parts = append(parts, p.sql)
				args = append(args, p.args...)
			}
			if len(parts) > 0 {
				preds = append(preds, predicate{
					sql:  "(" + strings.Join(parts, " OR ") + ")",
					args: args,
				})
			}
			continue
		}

		col, ok := ds.ColumnByName(cond.Attribute)
		if !ok {
			continue
		}
		if p, ok := containsPredicate(col, cond.Value); ok {
			preds = append(preds, p)
		}
	}
	return preds
}

// containsPredicate compiles one substring match against a column. For
// non-string columns the value must parse as the declared scalar type;
// otherwise the condition is dropped rather than failing the search.
func containsPredicate(col entity.Column, value string) (predicate, bool) {
	if !col.IsString() {
		if !scalarParses(col.DataType, value) {
			return predicate{}, false
		}
		return predicate{
			sql:  `CAST(` + quoteIdent(col.ColumnName) + ` AS TEXT) LIKE ? ESCAPE '\'`,
			args: []interface{}{"%" + escapeLike(value) + "%"},
		}, true
	}
	return predicate{
		sql:  quoteIdent(col.ColumnName) + ` LIKE ? ESCAPE '\'`,
		args: []interface{}{"%" + escapeLike(value) + "%"},
	}, true
}

func scalarParses(dataType, value string) bool {
	value = strings.TrimSpace(value)
	switch dataType {
	case entity.TypeInteger:
		_, err := strconv.ParseInt(value, 10, 64)
		return err == nil
	case entity.TypeDecimal:
		_, err := strconv.ParseFloat(value, 64)
		return err == nil
	case entity.TypeDate:
		_, err := time.Parse("2006-01-02", value)
		return err == nil
	case entity.TypeDatetime:
		_, err := parseDatetime(value)
		return err == nil
	}
	return true
}

var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func parseDatetime(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range datetimeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// escapeLike neutralizes LIKE wildcards in a user value so it matches
// literally inside the %...% pattern.
func escapeLike(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `%`, `\%`)
	value = strings.ReplaceAll(value, `_`, `\_`)
	return value
}

func normalizeCell(cell interface{}) interface{} {
	if b, ok := cell.([]byte); ok {
		return string(b)
	}
	return cell
}
