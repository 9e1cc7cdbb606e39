package builder

import (
	"github.com/ceems-dev/acctmgr/internal/common"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/clause"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
)

// Association condition keywords.
const (
	kwAccounts   = "Accounts"
	kwClusters   = "Clusters"
	kwPartitions = "Partitions"
	kwParents    = "Parents"
	kwQOSLevel   = "QosLevel"
)

var assocConditionTable = clause.Table{
	{Name: kwAccounts, MinLen: 2},
	{Name: kwClusters, MinLen: 1},
	{Name: kwPartitions, MinLen: 3},
	{Name: kwParents, MinLen: 4},
	{Name: kwQOSLevel, MinLen: 1},
}

// addAssocCondition applies tok to cond. It returns false when no association
// condition keyword matches.
func addAssocCondition(cond *models.AssociationCondition, tok clause.Token) bool {
	kw, ok := assocConditionTable.MatchToken(tok)
	if !ok {
		return false
	}

	switch kw {
	case kwAccounts:
		cond.Accounts.Add(tok.Value)
	case kwClusters:
		cond.Clusters.Add(tok.Value)
	case kwPartitions:
		cond.Partitions.Add(tok.Value)
	case kwParents:
		cond.Parents.Add(tok.Value)
	case kwQOSLevel:
		cond.QOS.Add(tok.Value)
	}

	return true
}

// Association record keywords.
const (
	kwDefaultQOS       = "DefaultQOS"
	kwFairshare        = "Fairshare"
	kwShares           = "Shares"
	kwGrpCPUMins       = "GrpCPUMins"
	kwGrpCPUs          = "GrpCPUs"
	kwGrpJobs          = "GrpJobs"
	kwGrpNodes         = "GrpNodes"
	kwGrpSubmitJobs    = "GrpSubmitJobs"
	kwGrpWall          = "GrpWall"
	kwMaxCPUMinsPerJob = "MaxCPUMinsPerJob"
	kwMaxCPUsPerJob    = "MaxCPUsPerJob"
	kwMaxJobs          = "MaxJobs"
	kwMaxNodesPerJob   = "MaxNodesPerJob"
	kwMaxSubmitJobs    = "MaxSubmitJobs"
	kwMaxWallPerJob    = "MaxWallDurationPerJob"
)

var assocRecordTable = clause.Table{
	{Name: kwDefaultQOS, MinLen: 3},
	{Name: kwFairshare, MinLen: 1},
	{Name: kwShares, MinLen: 1},
	{Name: kwGrpCPUMins, MinLen: 7},
	{Name: kwGrpCPUs, MinLen: 7},
	{Name: kwGrpJobs, MinLen: 4},
	{Name: kwGrpNodes, MinLen: 4},
	{Name: kwGrpSubmitJobs, MinLen: 4},
	{Name: kwGrpWall, MinLen: 4},
	{Name: kwMaxCPUMinsPerJob, MinLen: 7},
	{Name: kwMaxCPUsPerJob, MinLen: 7},
	{Name: kwMaxJobs, MinLen: 4},
	{Name: kwMaxNodesPerJob, MinLen: 4},
	{Name: kwMaxSubmitJobs, MinLen: 4},
	{Name: kwMaxWallPerJob, MinLen: 4},
	{Name: kwQOSLevel, MinLen: 1},
}

// limitField returns the limit of rec set by kw and whether it is a wall
// clock limit.
func limitField(rec *models.AssociationRecord, kw string) (**int64, bool) {
	switch kw {
	case kwFairshare, kwShares:
		return &rec.Shares, false
	case kwGrpCPUMins:
		return &rec.GrpCPUMins, false
	case kwGrpCPUs:
		return &rec.GrpCPUs, false
	case kwGrpJobs:
		return &rec.GrpJobs, false
	case kwGrpNodes:
		return &rec.GrpNodes, false
	case kwGrpSubmitJobs:
		return &rec.GrpSubmitJobs, false
	case kwGrpWall:
		return &rec.GrpWall, true
	case kwMaxCPUMinsPerJob:
		return &rec.MaxCPUMinsPerJob, false
	case kwMaxCPUsPerJob:
		return &rec.MaxCPUsPerJob, false
	case kwMaxJobs:
		return &rec.MaxJobs, false
	case kwMaxNodesPerJob:
		return &rec.MaxNodesPerJob, false
	case kwMaxSubmitJobs:
		return &rec.MaxSubmitJobs, false
	case kwMaxWallPerJob:
		return &rec.MaxWallPerJob, true
	}

	return nil, false
}

// addAssocRecord applies tok to rec. It returns matched false when no
// association record keyword matches and set false when the value was
// rejected.
func addAssocRecord(rec *models.AssociationRecord, tok clause.Token, d *diag.Diagnostics) (matched, set bool) {
	kw, ok := assocRecordTable.Match(tok.Keyword, false)
	if !ok || !tok.HasValue() {
		return false, false
	}

	switch kw {
	case kwDefaultQOS:
		rec.DefaultQOS = common.StripQuotes(tok.Value)

		return true, true
	case kwQOSLevel:
		switch tok.Op {
		case clause.OpAdd:
			rec.QOSOp = models.ListAdd
		case clause.OpRemove:
			rec.QOSOp = models.ListRemove
		default:
			rec.QOSOp = models.ListSet
		}

		rec.QOS.Add(tok.Value)

		return true, true
	}

	field, wall := limitField(rec, kw)

	var (
		v   int64
		err error
	)

	if wall {
		v, err = models.ParseWallMinutes(tok.Value)
	} else {
		v, err = models.ParseLimit(tok.Value)
	}

	if err != nil {
		d.Reportf(diag.KindParse, "Bad %s value %s: %s", kw, tok.Value, err)

		return true, false
	}

	*field = &v

	return true, true
}
