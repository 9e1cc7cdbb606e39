package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"

	"github.com/ceems-dev/acctmgr/internal/structset"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
)

// Query is a SQL statement under construction.
type Query struct {
	builder strings.Builder
	params  []any
	nconds  int
}

// Add query to builder.
func (q *Query) query(s string) {
	q.builder.WriteString(s)
}

// Add parameter list and its placeholders.
func (q *Query) param(val []string) {
	q.builder.WriteString(fmt.Sprintf("(%s)", strings.Join(strings.Split(strings.Repeat("?", len(val)), ""), ",")))

	for _, v := range val {
		q.params = append(q.params, v)
	}
}

// cond starts a new condition joined with AND.
func (q *Query) cond(s string, params ...any) {
	if q.nconds == 0 {
		q.builder.WriteString(" WHERE ")
	} else {
		q.builder.WriteString(" AND ")
	}

	q.nconds++
	q.builder.WriteString(s)
	q.params = append(q.params, params...)
}

// in adds column IN (values) condition when values is not empty.
func (q *Query) in(column string, values models.NameList) {
	if len(values) == 0 {
		return
	}

	q.cond(column + " IN ")
	q.param(values)
}

// anyOf adds a condition true when the comma separated list column contains
// one of the values.
func (q *Query) anyOf(column string, values models.NameList) {
	if len(values) == 0 {
		return
	}

	terms := make([]string, len(values))
	params := make([]any, len(values))

	for i, v := range values {
		terms[i] = fmt.Sprintf("name_list_has(%s, ?)", column)
		params[i] = v
	}

	q.cond("("+strings.Join(terms, " OR ")+")", params...)
}

// notDeleted filters soft deleted rows unless withDeleted is set.
func (q *Query) notDeleted(withDeleted bool) {
	if !withDeleted {
		q.cond("deleted = 0")
	}
}

// Get current query string and its parameters.
func (q *Query) get() (string, []any) {
	return q.builder.String(), q.params
}

// queryer is implemented by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Querier runs query and scans the rows into a slice of T.
func Querier[T any](ctx context.Context, q queryer, query *Query, logger *slog.Logger) ([]T, error) {
	queryString, queryParams := query.get()

	rows, err := q.QueryContext(ctx, queryString, queryParams...)
	if err != nil {
		logger.Error("Failed to execute query", "query", queryString, "err", err)

		return nil, translateErr(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("cannot fetch columns: %w", err)
	}

	indexes := structset.CachedFieldIndexes(reflect.TypeOf((*T)(nil)).Elem())

	var values []T

	for rows.Next() {
		var value T
		if err := structset.ScanRow(rows, columns, indexes, &value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}

	return values, nil
}

// insertColumns returns the column names and values of a model struct
// except its primary key.
func insertColumns(v any) ([]string, []any) {
	rv := reflect.ValueOf(v)
	indexes := structset.CachedFieldIndexes(rv.Type())

	var (
		columns []string
		values  []any
	)

	for _, column := range structset.GetStructFieldTagValues(v, "sql") {
		if column == "id" {
			continue
		}

		columns = append(columns, column)
		values = append(values, rv.FieldByIndex(indexes[column]).Interface())
	}

	return columns, values
}

// upsertStatement returns an INSERT statement that resurrects soft deleted
// rows on conflict with key columns.
func upsertStatement(table string, columns []string, key []string) string {
	updates := make([]string, 0, len(columns))

	for _, c := range columns {
		if !slices.Contains(key, c) {
			updates = append(updates, fmt.Sprintf("%[1]s = excluded.%[1]s", c))
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s WHERE %s.deleted = 1",
		table,
		strings.Join(columns, ", "),
		strings.TrimSuffix(strings.Repeat("?,", len(columns)), ","),
		strings.Join(key, ", "),
		strings.Join(updates, ", "),
		table,
	)
}
