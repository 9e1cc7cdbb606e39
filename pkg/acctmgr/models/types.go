package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/ceems-dev/acctmgr/internal/common"
)

// ErrUnknownAdminLevel is returned when an admin level string does not match any level.
var ErrUnknownAdminLevel = errors.New("unknown admin level")

// AdminLevel is the administrative privilege of a user.
type AdminLevel uint8

// Admin levels.
const (
	AdminNotSet AdminLevel = iota
	AdminNone
	AdminOperator
	AdminSuperUser
)

var adminLevelNames = map[AdminLevel]string{
	AdminNotSet:    "Not Set",
	AdminNone:      "None",
	AdminOperator:  "Operator",
	AdminSuperUser: "Administrator",
}

// String implements Stringer interface.
func (a AdminLevel) String() string {
	if s, ok := adminLevelNames[a]; ok {
		return s
	}

	return "Unknown"
}

// ParseAdminLevel parses s case-insensitively. Any non-empty prefix of a
// level name is accepted.
func ParseAdminLevel(s string) (AdminLevel, error) {
	if s == "" {
		return AdminNotSet, fmt.Errorf("%w: empty value", ErrUnknownAdminLevel)
	}

	for _, c := range []struct {
		name  string
		level AdminLevel
	}{
		{"None", AdminNone},
		{"Operator", AdminOperator},
		{"Administrator", AdminSuperUser},
		{"SuperUser", AdminSuperUser},
	} {
		if len(s) <= len(c.name) && strings.EqualFold(s, c.name[:len(s)]) {
			return c.level, nil
		}
	}

	return AdminNotSet, fmt.Errorf("%w: %s", ErrUnknownAdminLevel, s)
}

// Scope is a bitmask telling which layer a condition or record touches.
type Scope uint8

// Scopes.
const (
	ScopeNone  Scope = 0
	ScopeUser  Scope = 1
	ScopeAssoc Scope = 2
	ScopeBoth        = ScopeUser | ScopeAssoc
)

// Has returns true when all bits of o are set in s.
func (s Scope) Has(o Scope) bool {
	return o != ScopeNone && s&o == o
}

// NameList is an ordered list of names without case-insensitive duplicates.
type NameList []string

// Add splits a comma separated value, strips surrounding quotes of each item
// and appends the items not yet present. It returns the number of new items.
func (l *NameList) Add(values string) int {
	var added int

	for _, item := range common.SplitList(values) {
		if l.Contains(item) {
			continue
		}

		*l = append(*l, item)
		added++
	}

	return added
}

// Contains returns true when name is in the list ignoring case.
func (l NameList) Contains(name string) bool {
	return l.Index(name) >= 0
}

// Index returns the position of name in the list ignoring case or -1.
func (l NameList) Index(name string) int {
	for i, n := range l {
		if strings.EqualFold(n, name) {
			return i
		}
	}

	return -1
}

// Remove drops name from the list and returns true when it was present.
func (l *NameList) Remove(name string) bool {
	i := l.Index(name)
	if i < 0 {
		return false
	}

	*l = append((*l)[:i], (*l)[i+1:]...)

	return true
}

// String implements Stringer interface.
func (l NameList) String() string {
	return strings.Join(l, ",")
}

// Value implements Valuer interface.
func (l NameList) Value() (driver.Value, error) {
	return strings.Join(l, ","), nil
}

// Scan implements Scanner interface.
func (l *NameList) Scan(v any) error {
	*l = nil

	switch s := v.(type) {
	case nil:
		return nil
	case string:
		l.Add(s)
	case []byte:
		l.Add(string(s))
	default:
		return fmt.Errorf("cannot scan %T into NameList", v)
	}

	return nil
}

// ListOp is the operation a record applies to a list valued field.
type ListOp uint8

// List operations.
const (
	ListUnset ListOp = iota
	ListSet
	ListAdd
	ListRemove
)

// String implements Stringer interface.
func (o ListOp) String() string {
	switch o {
	case ListSet:
		return "="
	case ListAdd:
		return "+="
	case ListRemove:
		return "-="
	default:
		return ""
	}
}
