package structset

import (
	"database/sql"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inner struct {
	Shares *int64 `json:"shares" sql:"shares"`
	QOS    string `json:"qos"    sql:"qos"`
}

// testStruct is a test struct that will be used in tests.
type testStruct struct {
	ID     int      `json:"-"                sql:"id"`
	Field1 string   `json:"field1,omitempty" sql:"f1"`
	Field2 bool     `json:"field2"           sql:"f2"`
	Field3 any      `                        sql:"f3"`
	Field4 []string `json:"field4"           sql:"-"`
	inner
}

func TestGetStructFieldNames(t *testing.T) {
	fields := GetStructFieldNames(testStruct{})
	expectedFields := []string{"ID", "Field1", "Field2", "Field3", "Field4", "Shares", "QOS"}
	assert.ElementsMatch(t, expectedFields, fields)
}

func TestGetStructFieldTagValues(t *testing.T) {
	tags := GetStructFieldTagValues(testStruct{}, "json")
	expectedTags := []string{"field1", "field2", "Field3", "field4", "shares", "qos"}
	assert.ElementsMatch(t, expectedTags, tags)

	tags = GetStructFieldTagValues(&testStruct{}, "sql")
	expectedTags = []string{"id", "f1", "f2", "f3", "shares", "qos"}
	assert.ElementsMatch(t, expectedTags, tags)
}

func TestGetStructFieldTagMap(t *testing.T) {
	tagMap := GetStructFieldTagMap(testStruct{}, "json", "sql")
	expectedTagMap := map[string]string{
		"":       "id",
		"field1": "f1",
		"field2": "f2",
		"Field3": "f3",
		"field4": "",
		"shares": "shares",
		"qos":    "qos",
	}
	assert.Equal(t, expectedTagMap, tagMap)
}

func TestEmbeddedStructPromoted(t *testing.T) {
	type row struct {
		ID int64 `sql:"id"`
		inner2
	}

	indexes := CachedFieldIndexes(reflect.TypeOf(row{}))
	assert.Equal(t, []int{0}, indexes["id"])
	assert.Equal(t, []int{1, 0}, indexes["shares"])
	assert.Equal(t, []int{1, 1}, indexes["qos"])

	// Cached value is returned on second call
	assert.Equal(t, indexes, CachedFieldIndexes(reflect.TypeOf(row{})))
}

type inner2 struct {
	Shares *int64 `sql:"shares"`
	QOS    string `sql:"qos"`
}

type scanned struct {
	ID   int64  `sql:"id"`
	Name string `sql:"name"`
	inner2
}

func TestScanRow(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	defer db.Close()

	_, err = db.Exec(`CREATE TABLE t (id integer, name text, shares integer, qos text, extra text);
INSERT INTO t VALUES (1, 'alice', 10, 'normal', 'x'), (2, 'bob', NULL, '', 'y');`)
	require.NoError(t, err)

	rows, err := db.Query("SELECT * FROM t ORDER BY id")
	require.NoError(t, err)

	defer rows.Close()

	columns, err := rows.Columns()
	require.NoError(t, err)

	indexes := CachedFieldIndexes(reflect.TypeOf(scanned{}))

	var got []scanned

	for rows.Next() {
		var s scanned
		require.NoError(t, ScanRow(rows, columns, indexes, &s))

		got = append(got, s)
	}

	require.NoError(t, rows.Err())
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Name)
	require.NotNil(t, got[0].Shares)
	assert.Equal(t, int64(10), *got[0].Shares)
	assert.Equal(t, "normal", got[0].QOS)
	assert.Nil(t, got[1].Shares)
}

func TestScanRowBadDest(t *testing.T) {
	var s scanned
	assert.ErrorIs(t, ScanRow(nil, nil, nil, s), ErrNotStructPointer)
}
