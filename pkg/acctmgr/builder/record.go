package builder

import (
	"strconv"

	"github.com/ceems-dev/acctmgr/internal/common"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/clause"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
)

// Record keywords.
const (
	kwNewName  = "NewName"
	kwRawUsage = "RawUsage"
)

var recordTable = clause.Table{
	{Name: kwAdminLevel, MinLen: 2},
	{Name: kwDefaultAccount, MinLen: 8},
	{Name: kwDefaultWCKey, MinLen: 8},
	{Name: kwNewName, MinLen: 1},
	{Name: kwRawUsage, MinLen: 7},
}

// RecordBuilder accumulates the user and association changes of a modify
// directive.
type RecordBuilder struct {
	user  *models.UserRecord
	assoc *models.AssociationRecord
	diag  *diag.Diagnostics
	scope models.Scope
}

// NewRecordBuilder returns a builder reporting errors to d.
func NewRecordBuilder(d *diag.Diagnostics) *RecordBuilder {
	return &RecordBuilder{
		user:  &models.UserRecord{},
		assoc: &models.AssociationRecord{},
		diag:  d,
	}
}

// AddClause adds tok to the record and returns the scope it changes.
func (b *RecordBuilder) AddClause(tok clause.Token) models.Scope {
	scope := b.addClause(tok)
	b.scope |= scope

	return scope
}

func (b *RecordBuilder) addClause(tok clause.Token) models.Scope {
	if !tok.HasValue() {
		b.diag.Reportf(diag.KindParse, "Bad format on %s: End your option with an '=' sign", tok.Raw)

		return models.ScopeNone
	}

	kw, ok := recordTable.MatchToken(tok)
	if !ok {
		matched, set := addAssocRecord(b.assoc, tok, b.diag)
		if !matched {
			b.diag.Reportf(diag.KindParse, "Unknown option: %s\n Use keyword 'where' to modify condition", tok.Raw)

			return models.ScopeNone
		}

		if !set {
			return models.ScopeNone
		}

		return models.ScopeAssoc
	}

	switch kw {
	case kwAdminLevel:
		level, err := models.ParseAdminLevel(tok.Value)
		if err != nil {
			b.diag.Reportf(diag.KindParse, "Bad AdminLevel %s: %s", tok.Value, err)

			return models.ScopeNone
		}

		b.user.AdminLevel = level
	case kwDefaultAccount, kwDefaultWCKey, kwNewName:
		value := common.StripQuotes(tok.Value)
		if value == "" {
			b.diag.Reportf(diag.KindParse, "No value given in %s", tok.Raw)

			return models.ScopeNone
		}

		switch kw {
		case kwDefaultAccount:
			b.user.DefaultAccount = value
		case kwDefaultWCKey:
			b.user.DefaultWCKey = value
		default:
			b.user.NewName = value
		}
	case kwRawUsage:
		usage, err := strconv.ParseFloat(common.StripQuotes(tok.Value), 64)
		if err != nil || usage != 0 {
			b.diag.Reportf(diag.KindParse, "Raw usage can only be set to 0 (zero), got %s", tok.Value)

			return models.ScopeNone
		}

		b.assoc.ResetRawUsage = true

		return models.ScopeAssoc
	}

	return models.ScopeUser
}

// Build returns the user record, the association record and the OR of the
// scopes of all added clauses.
func (b *RecordBuilder) Build() (*models.UserRecord, *models.AssociationRecord, models.Scope) {
	return b.user, b.assoc, b.scope
}
