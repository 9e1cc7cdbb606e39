package builder

import (
	"github.com/ceems-dev/acctmgr/internal/common"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/clause"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/provision"
)

// ModifyRequest is a parsed modify user directive.
type ModifyRequest struct {
	Cond      *models.UserCondition
	CondScope models.Scope
	User      *models.UserRecord
	Assoc     *models.AssociationRecord
	RecScope  models.Scope
}

// ParseModify parses the clauses of a modify directive. Clauses after 'set'
// are record clauses, clauses before it or after 'where' are conditions.
func ParseModify(args []string, d *diag.Diagnostics) *ModifyRequest {
	cb := NewConditionBuilder(d, false)
	rb := NewRecordBuilder(d)

	var inRecord bool

	for _, arg := range args {
		tok := clause.Tokenize(arg)

		if kw, ok := sectionTable.MatchToken(tok); ok {
			inRecord = kw == kwSet

			continue
		}

		if inRecord {
			rb.AddClause(tok)
		} else {
			cb.AddClause(tok)
		}
	}

	req := &ModifyRequest{}
	req.Cond, req.CondScope = cb.Build()
	req.User, req.Assoc, req.RecScope = rb.Build()

	return req
}

// ParseCondition parses the clauses of a list, delete or coordinator
// directive. Section keywords are skipped.
func ParseCondition(args []string, d *diag.Diagnostics, withFormat bool) (*models.UserCondition, models.Scope) {
	cb := NewConditionBuilder(d, withFormat)

	for _, arg := range args {
		tok := clause.Tokenize(arg)

		if _, ok := sectionTable.MatchToken(tok); ok {
			continue
		}

		cb.AddClause(tok)
	}

	return cb.Build()
}

// Add user keywords.
const kwWCKeys = "WCKeys"

var addUserTable = clause.Table{
	{Name: kwNames, MinLen: 1},
	{Name: kwUsers, MinLen: 1},
	{Name: kwAdminLevel, MinLen: 2},
	{Name: kwDefaultAccount, MinLen: 8},
	{Name: kwDefaultWCKey, MinLen: 8},
	{Name: kwWCKeys, MinLen: 1},
}

// ParseAddUser parses the clauses of an add user directive. Limit clauses
// fill the template of the created associations.
func ParseAddUser(args []string, d *diag.Diagnostics) *provision.Request {
	req := &provision.Request{}
	rec := &models.AssociationRecord{}
	cond := &models.AssociationCondition{}

	for _, arg := range args {
		tok := clause.Tokenize(arg)

		kw, ok := addUserTable.MatchToken(tok)
		if !ok && !tok.HasValue() {
			kw, ok = kwUsers, true
		}

		if !ok {
			if matched, _ := addAssocRecord(rec, tok, d); matched {
				continue
			}

			if addAssocCondition(cond, tok) {
				continue
			}

			d.Reportf(diag.KindParse, "Unknown option: %s", tok.Raw)

			continue
		}

		switch kw {
		case kwNames, kwUsers:
			req.Users.Add(tok.Value)
		case kwAdminLevel:
			level, err := models.ParseAdminLevel(tok.Value)
			if err != nil {
				d.Reportf(diag.KindParse, "Bad AdminLevel %s: %s", tok.Value, err)

				continue
			}

			req.AdminLevel = level
		case kwDefaultAccount:
			if req.DefaultAccount != "" {
				d.Reportf(diag.KindParse, "Already listed DefaultAccount %s", req.DefaultAccount)

				continue
			}

			req.DefaultAccount = common.StripQuotes(tok.Value)
			cond.Accounts.Add(req.DefaultAccount)
		case kwDefaultWCKey:
			if req.DefaultWCKey != "" {
				d.Reportf(diag.KindParse, "Already listed DefaultWCKey %s", req.DefaultWCKey)

				continue
			}

			req.DefaultWCKey = common.StripQuotes(tok.Value)
			req.WCKeys.Add(req.DefaultWCKey)
		case kwWCKeys:
			req.WCKeys.Add(tok.Value)
		}
	}

	req.Accounts = cond.Accounts
	req.Clusters = cond.Clusters
	req.Partitions = cond.Partitions
	req.Template = rec.Limits

	return req
}

// Add account keywords.
const (
	kwDescription  = "Description"
	kwOrganization = "Organization"
	kwParent       = "Parent"
)

var addAccountTable = clause.Table{
	{Name: kwNames, MinLen: 1},
	{Name: kwClusters, MinLen: 1},
	{Name: kwDescription, MinLen: 1},
	{Name: kwOrganization, MinLen: 1},
	{Name: kwParent, MinLen: 3},
}

// ParseAddAccount parses the clauses of an add account directive.
func ParseAddAccount(args []string, d *diag.Diagnostics) []models.Account {
	var (
		names    models.NameList
		clusters models.NameList
		tmpl     models.Account
	)

	for _, arg := range args {
		tok := clause.Tokenize(arg)

		kw, ok := addAccountTable.MatchToken(tok)
		if !ok && !tok.HasValue() {
			kw, ok = kwNames, true
		}

		if !ok {
			d.Reportf(diag.KindParse, "Unknown option: %s", tok.Raw)

			continue
		}

		switch kw {
		case kwNames:
			names.Add(tok.Value)
		case kwClusters:
			clusters.Add(tok.Value)
		case kwDescription:
			tmpl.Description = common.StripQuotes(tok.Value)
		case kwOrganization:
			tmpl.Organization = common.StripQuotes(tok.Value)
		case kwParent:
			tmpl.Parent = common.StripQuotes(tok.Value)
		}
	}

	accounts := make([]models.Account, 0, len(names))

	for _, name := range names {
		account := tmpl
		account.Name = name
		account.Clusters = append(models.NameList{}, clusters...)

		if account.Description == "" {
			account.Description = name
		}

		if account.Organization == "" {
			account.Organization = name
		}

		accounts = append(accounts, account)
	}

	return accounts
}

var addClusterTable = clause.Table{
	{Name: kwNames, MinLen: 1},
}

// ParseAddCluster parses the clauses of an add cluster directive.
func ParseAddCluster(args []string, d *diag.Diagnostics) []models.Cluster {
	var names models.NameList

	for _, arg := range args {
		tok := clause.Tokenize(arg)

		if _, ok := addClusterTable.MatchToken(tok); !ok && tok.HasValue() {
			d.Reportf(diag.KindParse, "Unknown option: %s", tok.Raw)

			continue
		}

		names.Add(tok.Value)
	}

	clusters := make([]models.Cluster, 0, len(names))
	for _, name := range names {
		clusters = append(clusters, models.Cluster{Name: name})
	}

	return clusters
}
