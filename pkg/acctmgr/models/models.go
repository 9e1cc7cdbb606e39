// Package models defines the entities stored in the accounting database and
// the conditions and records used to select and mutate them
package models

import (
	"fmt"
	"strings"

	"github.com/ceems-dev/acctmgr/internal/structset"
)

const (
	clustersTableName     = "clusters"
	accountsTableName     = "accounts"
	usersTableName        = "users"
	associationsTableName = "associations"
	wckeysTableName       = "wckeys"
	coordinatorsTableName = "coordinators"
)

// Cluster is a cluster registered in accounting.
type Cluster struct {
	ID      int64  `json:"-"       sql:"id"      sqlitetype:"integer not null primary key"`
	Name    string `json:"name"    sql:"name"    sqlitetype:"text"`
	Deleted bool   `json:"deleted" sql:"deleted" sqlitetype:"integer"`
}

// TableName returns the table which clusters are stored into.
func (Cluster) TableName() string {
	return clustersTableName
}

// TagNames returns a slice of all tag names.
func (c Cluster) TagNames(tag string) []string {
	return structset.GetStructFieldTagValues(c, tag)
}

// Account is an organisational node that associations hang from.
type Account struct {
	ID           int64    `json:"-"            sql:"id"           sqlitetype:"integer not null primary key"`
	Name         string   `json:"name"         sql:"name"         sqlitetype:"text"`
	Description  string   `json:"description"  sql:"description"  sqlitetype:"text"`
	Organization string   `json:"organization" sql:"organization" sqlitetype:"text"`
	Parent       string   `json:"parent"       sql:"parent"       sqlitetype:"text"`
	Deleted      bool     `json:"deleted"      sql:"deleted"      sqlitetype:"integer"`
	Clusters     NameList `json:"clusters"     sql:"-"` // Clusters on which base associations are created when the account is added
}

// TableName returns the table which accounts are stored into.
func (Account) TableName() string {
	return accountsTableName
}

// TagNames returns a slice of all tag names.
func (a Account) TagNames(tag string) []string {
	return structset.GetStructFieldTagValues(a, tag)
}

// User is an accounting user. Associations and WCKeys are only populated on
// drafts created by provisioning and on queries asking for them.
type User struct {
	ID             int64         `json:"-"               sql:"id"            sqlitetype:"integer not null primary key"`
	Name           string        `json:"name"            sql:"name"          sqlitetype:"text"`
	AdminLevel     AdminLevel    `json:"admin_level"     sql:"admin_level"   sqlitetype:"integer"`
	DefaultAccount string        `json:"default_account" sql:"default_acct"  sqlitetype:"text"`
	DefaultWCKey   string        `json:"default_wckey"   sql:"default_wckey" sqlitetype:"text"`
	Deleted        bool          `json:"deleted"         sql:"deleted"       sqlitetype:"integer"`
	Associations   []Association `json:"associations"    sql:"-"`
	WCKeys         []WCKey       `json:"wckeys"          sql:"-"`
	Coordinators   []string      `json:"coordinators"    sql:"-"` // Accounts the user coordinates
}

// TableName returns the table which users are stored into.
func (User) TableName() string {
	return usersTableName
}

// TagNames returns a slice of all tag names.
func (u User) TagNames(tag string) []string {
	return structset.GetStructFieldTagValues(u, tag)
}

// Association binds a user to an account on a cluster, optionally restricted to
// a partition. An empty User denotes the base association of the account.
type Association struct {
	ID            int64   `json:"-"          sql:"id"          sqlitetype:"integer not null primary key"`
	User          string  `json:"user"       sql:"usr"         sqlitetype:"text"`
	Account       string  `json:"account"    sql:"acct"        sqlitetype:"text"`
	Cluster       string  `json:"cluster"    sql:"cluster"     sqlitetype:"text"`
	Partition     string  `json:"partition"  sql:"partition"   sqlitetype:"text"`
	ParentAccount string  `json:"parent"     sql:"parent_acct" sqlitetype:"text"`
	Limits                // Limits template copied on creation
	RawUsage      float64 `json:"raw_usage"  sql:"raw_usage"   sqlitetype:"real"`
	Deleted       bool    `json:"deleted"    sql:"deleted"     sqlitetype:"integer"`
}

// TableName returns the table which associations are stored into.
func (Association) TableName() string {
	return associationsTableName
}

// TagNames returns a slice of all tag names.
func (a Association) TagNames(tag string) []string {
	return structset.GetStructFieldTagValues(a, tag)
}

// Key returns the identity tuple of the association.
func (a Association) Key() AssociationKey {
	return AssociationKey{User: a.User, Account: a.Account, Cluster: a.Cluster, Partition: a.Partition}
}

// IsBase returns true for the account base association.
func (a Association) IsBase() bool {
	return a.User == ""
}

// String is the line used in previews and affected object lists.
func (a Association) String() string {
	s := fmt.Sprintf("C = %-10s A = %-20s U = %-9s", a.Cluster, a.Account, a.User)
	if a.Partition != "" {
		s += " P = " + a.Partition
	}

	return strings.TrimRight(s, " ")
}

// AssociationKey is the unique key of an association. Names compare
// case-insensitively.
type AssociationKey struct {
	User      string
	Account   string
	Cluster   string
	Partition string
}

// Matches returns true when both keys identify the same association.
func (k AssociationKey) Matches(o AssociationKey) bool {
	return strings.EqualFold(k.User, o.User) &&
		strings.EqualFold(k.Account, o.Account) &&
		strings.EqualFold(k.Cluster, o.Cluster) &&
		strings.EqualFold(k.Partition, o.Partition)
}

// WCKey is a workload charge key of a user on a cluster.
type WCKey struct {
	ID        int64  `json:"-"          sql:"id"      sqlitetype:"integer not null primary key"`
	User      string `json:"user"       sql:"usr"     sqlitetype:"text"`
	Name      string `json:"name"       sql:"name"    sqlitetype:"text"`
	Cluster   string `json:"cluster"    sql:"cluster" sqlitetype:"text"`
	IsDefault bool   `json:"is_default" sql:"is_def"  sqlitetype:"integer"`
	Deleted   bool   `json:"deleted"    sql:"deleted" sqlitetype:"integer"`
}

// TableName returns the table which wckeys are stored into.
func (WCKey) TableName() string {
	return wckeysTableName
}

// TagNames returns a slice of all tag names.
func (w WCKey) TagNames(tag string) []string {
	return structset.GetStructFieldTagValues(w, tag)
}

// Matches returns true when w is the (user, name, cluster) charge key.
func (w WCKey) Matches(user, name, cluster string) bool {
	return strings.EqualFold(w.User, user) &&
		strings.EqualFold(w.Name, name) &&
		strings.EqualFold(w.Cluster, cluster)
}

// Coordinator is a coordinator grant of a user over an account.
type Coordinator struct {
	ID      int64  `json:"-"       sql:"id"      sqlitetype:"integer not null primary key"`
	User    string `json:"user"    sql:"usr"     sqlitetype:"text"`
	Account string `json:"account" sql:"acct"    sqlitetype:"text"`
	Deleted bool   `json:"deleted" sql:"deleted" sqlitetype:"integer"`
}

// TableName returns the table which coordinator grants are stored into.
func (Coordinator) TableName() string {
	return coordinatorsTableName
}

// TagNames returns a slice of all tag names.
func (c Coordinator) TagNames(tag string) []string {
	return structset.GetStructFieldTagValues(c, tag)
}
