package apply

import (
	"testing"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddClusters(t *testing.T) {
	s := newStore(t)
	h := newHarness(s, true)

	require.NoError(t, h.o.AddClusters(t.Context(), []models.Cluster{{Name: "c1"}, {Name: "c3"}}))

	assert.Equal(t, StateCommitted, h.o.State())
	assert.Contains(t, h.out.String(), " This cluster c1 already exists.  Not adding.\n")
	assert.Contains(t, h.out.String(), " Adding Cluster(s)\n  Name          = c3\n")

	clusters, err := s.Clusters(t.Context(), nil)
	require.NoError(t, err)
	assert.Len(t, clusters, 3)
}

func TestAddClustersNothingNew(t *testing.T) {
	s := newStore(t)
	h := newHarness(s, true)

	require.NoError(t, h.o.AddClusters(t.Context(), []models.Cluster{{Name: "C1"}}))

	assert.Equal(t, StateDiscarded, h.o.State())
	assert.Contains(t, h.out.String(), " Nothing new added.\n")
	assert.Empty(t, h.prompter.Questions)
}

func TestAddClustersWithoutName(t *testing.T) {
	h := newHarness(newStore(t), true)

	require.Error(t, h.o.AddClusters(t.Context(), nil))
	assert.Equal(t, StateFailed, h.o.State())
	assert.Equal(t, " You need to specify a cluster name.\n", h.errs.String())
}

func TestAddAccounts(t *testing.T) {
	s := newStore(t)
	h := newHarness(s, true)

	accounts := []models.Account{
		{Name: "biology", Description: "bio", Organization: "science", Parent: "physics"},
		{Name: "genetics", Parent: "biology", Clusters: models.NameList{"c2"}},
		{Name: "physics"},
	}

	require.NoError(t, h.o.AddAccounts(t.Context(), accounts))

	assert.Equal(t, StateCommitted, h.o.State())
	assert.False(t, h.diag.Failed())

	out := h.out.String()
	assert.Contains(t, out, " This account physics already exists.  Not adding.\n")
	assert.Contains(t, out, "  biology\n   Description     = bio\n   Organization    = science\n   Parent          = physics\n")
	assert.Contains(t, out, "   A = biology    C = c1\n   A = biology    C = c2\n")
	assert.Contains(t, out, "   A = genetics   C = c2\n")

	existing, err := s.Accounts(t.Context(), &models.AccountCondition{Names: models.NameList{"biology", "genetics"}})
	require.NoError(t, err)
	assert.Len(t, existing, 2)
}

func TestAddAccountsReferenceErrors(t *testing.T) {
	s := newStore(t)
	h := newHarness(s, true)

	accounts := []models.Account{
		{Name: "biology", Parent: "nowhere"},
		{Name: "geology", Clusters: models.NameList{"c9"}},
	}

	require.NoError(t, h.o.AddAccounts(t.Context(), accounts))

	assert.Equal(t, StateDiscarded, h.o.State())
	assert.Equal(t, 2, h.diag.Count(diag.KindReference))
	assert.Contains(t, h.errs.String(), "The parent account 'nowhere' of account 'biology' doesn't exist.")
	assert.Contains(t, h.errs.String(), "This cluster 'c9' doesn't exist.")
	assert.Contains(t, h.out.String(), " Nothing new added.\n")
}

func TestAddAccountsWithoutName(t *testing.T) {
	h := newHarness(newStore(t), true)

	require.Error(t, h.o.AddAccounts(t.Context(), nil))
	assert.Equal(t, " Need name of account to add.\n", h.errs.String())
}
