package sqlite

import (
	"database/sql"
	"strings"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/mattn/go-sqlite3"
)

// DriverName is the name of the sqlite3 driver with the name list functions
// registered on every connection.
const DriverName = "acctmgr_sqlite3"

// List edit operations understood by name_list_edit.
const (
	listEditAdd    = 1
	listEditRemove = 2
)

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("name_list_has", nameListHas, true); err != nil {
				return err
			}

			return conn.RegisterFunc("name_list_edit", nameListEdit, true)
		},
	})
}

// nameListHas returns true when the comma separated list contains name
// ignoring case.
func nameListHas(list, name string) bool {
	var l models.NameList
	l.Add(list)

	return l.Contains(name)
}

// nameListEdit adds or removes the comma separated values to and from the
// comma separated list.
func nameListEdit(list string, op int, values string) string {
	var l, v models.NameList
	l.Add(list)
	v.Add(values)

	switch op {
	case listEditAdd:
		for _, name := range v {
			l.Add(name)
		}
	case listEditRemove:
		for _, name := range v {
			l.Remove(name)
		}
	}

	return strings.Join(l, ",")
}
