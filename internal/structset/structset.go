// Package structset implements helper functions that involves structs
package structset

import (
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"sync"
)

var fieldIndexesCache sync.Map

// ErrNotStructPointer is returned when ScanRow destination is not a pointer to struct.
var ErrNotStructPointer = errors.New("dest must be a non-nil pointer to struct")

// Get tag value of field. If tag value is "-", empty string will be returned
// If tag is empty, return name of field.
func getTagValue(field reflect.StructField, tag string) string {
	switch v := field.Tag.Get(tag); v {
	case "-":
		return ""
	case "":
		return field.Name
	default:
		return strings.Split(v, ",")[0]
	}
}

// isEmbedded returns true for anonymous struct fields without an explicit tag.
// Fields of such structs are promoted to the parent.
func isEmbedded(field reflect.StructField, tag string) bool {
	return field.Anonymous && field.Type.Kind() == reflect.Struct && field.Tag.Get(tag) == ""
}

func structType(s any) reflect.Type {
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t
}

// GetStructFieldNames returns all fields in a given struct with embedded
// struct fields promoted.
func GetStructFieldNames(s any) []string {
	var fields []string

	walkFields(structType(s), "", nil, func(f reflect.StructField, _ []int) {
		fields = append(fields, f.Name)
	})

	return fields
}

// GetStructFieldTagValues returns all tag names in a given struct for a given tag.
func GetStructFieldTagValues(s any, tag string) []string {
	var values []string

	walkFields(structType(s), tag, nil, func(f reflect.StructField, _ []int) {
		if value := getTagValue(f, tag); value != "" {
			values = append(values, value)
		}
	})

	return values
}

// GetStructFieldTagMap returns a map of tags using keyTag as map key and valueTag as map value.
func GetStructFieldTagMap(s any, keyTag string, valueTag string) map[string]string {
	fields := make(map[string]string)

	walkFields(structType(s), keyTag, nil, func(f reflect.StructField, _ []int) {
		fields[getTagValue(f, keyTag)] = getTagValue(f, valueTag)
	})

	return fields
}

// walkFields calls fn for every exported leaf field of t, descending into
// embedded structs.
func walkFields(t reflect.Type, tag string, parent []int, fn func(reflect.StructField, []int)) {
	for i := range t.NumField() {
		field := t.Field(i)
		index := append(append([]int{}, parent...), i)

		if isEmbedded(field, tag) {
			walkFields(field.Type, tag, index, fn)

			continue
		}

		if field.IsExported() {
			fn(field, index)
		}
	}
}

// ScanRow is a cut-down version of the proposed Rows.ScanRow method. It
// handles dest being a pointer to struct including embedded structs.
// Columns without a matching field are discarded.
// See https://github.com/golang/go/issues/61637
func ScanRow(rows *sql.Rows, columns []string, indexes map[string][]int, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrNotStructPointer
	}

	elem := rv.Elem()

	scanArgs := make([]any, len(columns))

	for i, column := range columns {
		if index, ok := indexes[column]; ok {
			scanArgs[i] = elem.FieldByIndex(index).Addr().Interface()
		} else {
			scanArgs[i] = new(any)
		}
	}

	return rows.Scan(scanArgs...)
}

// fieldIndexes returns a map of database column name to struct field index path.
func fieldIndexes(t reflect.Type) map[string][]int {
	indexes := make(map[string][]int)

	walkFields(t, "sql", nil, func(f reflect.StructField, index []int) {
		if column := getTagValue(f, "sql"); column != "" {
			indexes[column] = index
		}
	})

	return indexes
}

// CachedFieldIndexes is like fieldIndexes, but cached per struct type.
func CachedFieldIndexes(t reflect.Type) map[string][]int {
	if f, ok := fieldIndexesCache.Load(t); ok {
		if indexes, ok := f.(map[string][]int); ok {
			return indexes
		}
	}

	indexes := fieldIndexes(t)
	fieldIndexesCache.Store(t, indexes)

	return indexes
}
