// Package builder accumulates conditions, records and add requests from
// directive clauses.
package builder

import (
	"github.com/ceems-dev/acctmgr/internal/common"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/clause"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
)

// Condition keywords.
const (
	kwSet              = "Set"
	kwWhere            = "Where"
	kwWithAssoc        = "WithAssoc"
	kwWithCoordinators = "WithCoordinators"
	kwWithDeleted      = "WithDeleted"
	kwWithRawQOSLevel  = "WithRawQOSLevel"
	kwWOPLimits        = "WOPLimits"
	kwWithoutParent    = "WithoutParentLimits"
	kwNames            = "Names"
	kwUsers            = "Users"
	kwAdminLevel       = "AdminLevel"
	kwDefaultAccount   = "DefaultAccount"
	kwDefaultWCKey     = "DefaultWCKey"
	kwFormat           = "Format"
)

// sectionTable holds the keywords switching between condition and record
// sections of a directive.
var sectionTable = clause.Table{
	{Name: kwWhere, MinLen: 5, Bare: true},
	{Name: kwSet, MinLen: 3, Bare: true},
}

var conditionTable = clause.Table{
	{Name: kwWithAssoc, MinLen: 5, Bare: true},
	{Name: kwWithCoordinators, MinLen: 5, Bare: true},
	{Name: kwWithDeleted, MinLen: 5, Bare: true},
	{Name: kwWithRawQOSLevel, MinLen: 5, Bare: true},
	{Name: kwWOPLimits, MinLen: 4, Bare: true},
	{Name: kwWithoutParent, MinLen: 8, Bare: true},
	{Name: kwWhere, MinLen: 5, Bare: true},
	{Name: kwNames, MinLen: 1},
	{Name: kwUsers, MinLen: 1},
	{Name: kwAdminLevel, MinLen: 2},
	{Name: kwDefaultAccount, MinLen: 8},
	{Name: kwDefaultWCKey, MinLen: 8},
	{Name: kwFormat, MinLen: 1},
}

// ConditionBuilder accumulates a user condition.
type ConditionBuilder struct {
	cond  *models.UserCondition
	diag  *diag.Diagnostics
	scope models.Scope

	// Format clauses are ignored unless set
	withFormat bool
}

// NewConditionBuilder returns a builder reporting errors to d.
func NewConditionBuilder(d *diag.Diagnostics, withFormat bool) *ConditionBuilder {
	return &ConditionBuilder{
		cond:       models.NewUserCondition(),
		diag:       d,
		withFormat: withFormat,
	}
}

// AddClause adds tok to the condition and returns the scope it constrains.
// Unknown clauses are reported and constrain nothing.
func (b *ConditionBuilder) AddClause(tok clause.Token) models.Scope {
	scope := b.addClause(tok)
	b.scope |= scope

	return scope
}

func (b *ConditionBuilder) addClause(tok clause.Token) models.Scope {
	cond := b.cond

	kw, ok := conditionTable.MatchToken(tok)
	if !ok && !tok.HasValue() {
		// Bare values are user names
		kw, ok = kwUsers, true
	}

	if !ok {
		if addAssocCondition(cond.Assoc, tok) {
			return models.ScopeAssoc
		}

		b.diag.Reportf(diag.KindParse, "Unknown condition: %s\n Use keyword 'set' to modify value", tok.Raw)

		return models.ScopeNone
	}

	switch kw {
	case kwWithAssoc:
		cond.WithAssocs = true
	case kwWithCoordinators:
		cond.WithCoords = true
	case kwWithDeleted:
		cond.WithDeleted = true
		cond.Assoc.WithDeleted = true
	case kwWithRawQOSLevel:
		cond.Assoc.WithRawQOS = true
	case kwWOPLimits, kwWithoutParent:
		cond.Assoc.WithoutParentLimits = true
	case kwWhere:
	case kwNames, kwUsers:
		return b.addNames(&cond.Assoc.Users, tok)
	case kwAdminLevel:
		level, err := models.ParseAdminLevel(tok.Value)
		if err != nil {
			b.diag.Reportf(diag.KindParse, "Bad AdminLevel %s: %s", tok.Value, err)

			return models.ScopeNone
		}

		cond.AdminLevel = level

		return models.ScopeUser
	case kwDefaultAccount:
		return b.addNames(&cond.DefaultAccounts, tok)
	case kwDefaultWCKey:
		return b.addNames(&cond.DefaultWCKeys, tok)
	case kwFormat:
		if b.withFormat {
			cond.Format = append(cond.Format, common.SplitList(tok.Value)...)
		}
	}

	return models.ScopeNone
}

func (b *ConditionBuilder) addNames(list *models.NameList, tok clause.Token) models.Scope {
	if list.Add(tok.Value) == 0 && len(common.SplitList(tok.Value)) == 0 {
		b.diag.Reportf(diag.KindParse, "No names given in %s", tok.Raw)

		return models.ScopeNone
	}

	return models.ScopeUser
}

// Build returns the condition and the OR of the scopes of all added clauses.
func (b *ConditionBuilder) Build() (*models.UserCondition, models.Scope) {
	return b.cond, b.scope
}
