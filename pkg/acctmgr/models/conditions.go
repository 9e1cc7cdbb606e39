package models

// AssociationCondition selects associations.
type AssociationCondition struct {
	Users               NameList
	Accounts            NameList
	Clusters            NameList
	Partitions          NameList
	Parents             NameList
	QOS                 NameList
	WithDeleted         bool
	WithRawQOS          bool
	WithoutParentLimits bool
}

// IsEmpty returns true when no list is set.
func (c *AssociationCondition) IsEmpty() bool {
	return c == nil || (len(c.Users) == 0 && len(c.Accounts) == 0 && len(c.Clusters) == 0 &&
		len(c.Partitions) == 0 && len(c.Parents) == 0 && len(c.QOS) == 0)
}

// UserCondition selects users. Assoc carries the user name list and is never
// nil on conditions created by NewUserCondition.
type UserCondition struct {
	Assoc           *AssociationCondition
	AdminLevel      AdminLevel
	DefaultAccounts NameList
	DefaultWCKeys   NameList
	WithAssocs      bool
	WithCoords      bool
	WithDeleted     bool
	Format          []string
}

// NewUserCondition returns an empty user condition.
func NewUserCondition() *UserCondition {
	return &UserCondition{Assoc: &AssociationCondition{}}
}

// Users returns the user name list of the condition.
func (c *UserCondition) Users() NameList {
	if c == nil || c.Assoc == nil {
		return nil
	}

	return c.Assoc.Users
}

// AccountCondition selects accounts.
type AccountCondition struct {
	Names       NameList
	WithDeleted bool
}

// ClusterCondition selects clusters. An empty name list selects every cluster.
type ClusterCondition struct {
	Names       NameList
	WithDeleted bool
}

// WCKeyCondition selects wckeys.
type WCKeyCondition struct {
	Users       NameList
	Names       NameList
	Clusters    NameList
	WithDeleted bool
}

// UserRecord carries the user level changes of a modify directive.
type UserRecord struct {
	AdminLevel     AdminLevel
	DefaultAccount string
	DefaultWCKey   string
	NewName        string
}

// IsSet returns true when the record changes anything.
func (r *UserRecord) IsSet() bool {
	return r != nil && (r.AdminLevel != AdminNotSet || r.DefaultAccount != "" ||
		r.DefaultWCKey != "" || r.NewName != "")
}

// AssociationRecord carries the association level changes of a modify
// directive. Limits.QOS is applied according to QOSOp.
type AssociationRecord struct {
	Limits
	QOSOp         ListOp
	ResetRawUsage bool
}

// IsSet returns true when the record changes anything.
func (r *AssociationRecord) IsSet() bool {
	if r == nil {
		return false
	}

	for _, e := range r.Entries() {
		if e.Value != nil {
			return true
		}
	}

	return r.QOSOp != ListUnset || r.DefaultQOS != "" || r.ResetRawUsage
}
