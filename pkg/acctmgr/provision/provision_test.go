package provision

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ceems-dev/acctmgr/internal/identity"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/prompt"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownUsers = identity.Static{"u1": 2001, "u2": 2002, "alice": 2003}

// newStore returns a store with clusters c1 and c2, account physics on both
// clusters, chemistry on c1 and biology without base associations.
func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.Open(t.Context(), sqlite.Config{
		Path:   filepath.Join(t.TempDir(), "accounting.db"),
		Logger: slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.AddClusters(t.Context(), []models.Cluster{{Name: "c1"}, {Name: "c2"}}))
	require.NoError(t, s.AddAccounts(t.Context(), []models.Account{
		{Name: "physics", Clusters: models.NameList{"c1", "c2"}},
		{Name: "chemistry", Clusters: models.NameList{"c1"}},
		{Name: "biology"},
	}))

	return s
}

func newEngine(s storage.Storage, d *diag.Diagnostics, c Config) *Engine {
	c.Storage = s
	c.Diag = d
	c.Logger = slog.New(slog.DiscardHandler)

	if c.Identity == nil {
		c.Identity = knownUsers
	}

	return New(c)
}

// apply stores the records of plan.
func apply(t *testing.T, s storage.Storage, plan *Plan) {
	t.Helper()

	require.NoError(t, s.AddUsers(t.Context(), plan.Users))
	require.NoError(t, s.AddAssociations(t.Context(), plan.Associations))
	require.NoError(t, s.AddWCKeys(t.Context(), plan.WCKeys))
}

func keys(assocs []models.Association) []models.AssociationKey {
	var k []models.AssociationKey
	for _, a := range assocs {
		k = append(k, a.Key())
	}

	return k
}

func TestParseWCKeyLookupPolicy(t *testing.T) {
	p, err := ParseWCKeyLookupPolicy("")
	require.NoError(t, err)
	assert.Equal(t, WCKeyTolerate, p)

	p, err = ParseWCKeyLookupPolicy("Strict")
	require.NoError(t, err)
	assert.Equal(t, WCKeyStrict, p)

	_, err = ParseWCKeyLookupPolicy("lenient")
	require.Error(t, err)
}

func TestPlanCrossProduct(t *testing.T) {
	s := newStore(t)
	d := diag.New(nil, nil)
	e := newEngine(s, d, Config{})

	plan, err := e.Plan(t.Context(), Request{
		Users:    models.NameList{"u1", "u2"},
		Accounts: models.NameList{"physics"},
		Clusters: models.NameList{"c1"},
	})
	require.NoError(t, err)
	require.Len(t, plan.Users, 2)
	require.Len(t, plan.Associations, 2)
	apply(t, s, plan)

	plan, err = e.Plan(t.Context(), Request{
		Users:    models.NameList{"u1", "u2"},
		Accounts: models.NameList{"physics"},
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Users)
	assert.Equal(t, []models.AssociationKey{
		{User: "u1", Account: "physics", Cluster: "c2"},
		{User: "u2", Account: "physics", Cluster: "c2"},
	}, keys(plan.Associations))
	assert.False(t, d.Failed())
}

func TestPlanNewUsers(t *testing.T) {
	s := newStore(t)
	d := diag.New(nil, nil)
	e := newEngine(s, d, Config{})

	plan, err := e.Plan(t.Context(), Request{
		Users:      models.NameList{"u1", "u2"},
		Accounts:   models.NameList{"physics"},
		AdminLevel: models.AdminNotSet,
		Template:   models.Limits{MaxJobs: new(int64)},
	})
	require.NoError(t, err)
	require.Len(t, plan.Users, 2)
	assert.Len(t, plan.Associations, 4)
	assert.Equal(t, "physics", plan.DefaultAccount)

	for _, u := range plan.Users {
		assert.Equal(t, models.AdminNone, u.AdminLevel)
		assert.Equal(t, "physics", u.DefaultAccount)
		assert.Len(t, u.Associations, 2)
	}

	for _, a := range plan.Associations {
		assert.Equal(t, "physics", a.ParentAccount)
		require.NotNil(t, a.MaxJobs)
	}

	// Drafts do not share the template
	*plan.Associations[0].MaxJobs = 5
	assert.Equal(t, int64(0), *plan.Associations[1].MaxJobs)
}

func TestPlanIsIdempotent(t *testing.T) {
	s := newStore(t)
	d := diag.New(nil, nil)
	e := newEngine(s, d, Config{})

	req := Request{Users: models.NameList{"u1"}, Accounts: models.NameList{"physics"}}

	plan, err := e.Plan(t.Context(), req)
	require.NoError(t, err)
	apply(t, s, plan)

	plan, err = e.Plan(t.Context(), req)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.False(t, d.Failed())
}

func TestPlanPartitions(t *testing.T) {
	s := newStore(t)
	d := diag.New(nil, nil)
	e := newEngine(s, d, Config{})

	require.NoError(t, s.AddUsers(t.Context(), []models.User{{Name: "alice", DefaultAccount: "physics"}}))
	require.NoError(t, s.AddAssociations(t.Context(), []models.Association{
		{User: "alice", Account: "physics", Cluster: "c1", ParentAccount: "physics"},
		{User: "alice", Account: "physics", Cluster: "c1", Partition: "p1", ParentAccount: "physics"},
	}))

	plan, err := e.Plan(t.Context(), Request{
		Users:      models.NameList{"alice"},
		Accounts:   models.NameList{"physics"},
		Clusters:   models.NameList{"c1"},
		Partitions: models.NameList{"p1", "p2"},
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Users)
	assert.Equal(t, []models.AssociationKey{
		{User: "alice", Account: "physics", Cluster: "c1", Partition: "p2"},
	}, keys(plan.Associations))
}

func TestPlanMissingAccount(t *testing.T) {
	s := newStore(t)

	var out bytes.Buffer

	d := diag.New(&out, nil)
	e := newEngine(s, d, Config{})

	plan, err := e.Plan(t.Context(), Request{
		Users:    models.NameList{"u1", "u2"},
		Accounts: models.NameList{"physics", "nosuchacct"},
		Clusters: models.NameList{"c1"},
	})
	require.NoError(t, err)
	assert.Len(t, plan.Associations, 2)

	for _, a := range plan.Associations {
		assert.Equal(t, "physics", a.Account)
	}

	// Reported once for both users
	assert.Equal(t, 1, d.Count(diag.KindReference))
	assert.Contains(t, out.String(), " This account 'nosuchacct' doesn't exist.")
	assert.Equal(t, 1, d.ExitCode())
}

func TestPlanMissingDefaultAccount(t *testing.T) {
	s := newStore(t)
	e := newEngine(s, diag.New(nil, nil), Config{})

	_, err := e.Plan(t.Context(), Request{
		Users:    models.NameList{"u1"},
		Accounts: models.NameList{"nosuchacct", "physics"},
	})
	require.Error(t, err)
	assert.Equal(t, diag.KindReference, diag.KindOf(err))
	assert.Contains(t, err.Error(), "This account 'nosuchacct' doesn't exist.")
}

func TestPlanMissingBaseAssociation(t *testing.T) {
	s := newStore(t)
	d := diag.New(nil, nil)
	e := newEngine(s, d, Config{})

	plan, err := e.Plan(t.Context(), Request{
		Users:    models.NameList{"u1", "u2"},
		Accounts: models.NameList{"physics", "chemistry"},
	})
	require.NoError(t, err)
	assert.Len(t, plan.Associations, 6)

	// chemistry has no base association on c2
	assert.Equal(t, 1, d.Count(diag.KindReference))

	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Msg, "This account 'chemistry' doesn't exist on cluster c2")
}

func TestPlanNoAssociationCreated(t *testing.T) {
	s := newStore(t)
	d := diag.New(nil, nil)
	e := newEngine(s, d, Config{})

	_, err := e.Plan(t.Context(), Request{
		Users:    models.NameList{"u1"},
		Accounts: models.NameList{"biology"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No associations or wckeys created.")
	assert.Equal(t, 2, d.Count(diag.KindReference))
}

func TestPlanClusters(t *testing.T) {
	s := newStore(t)
	d := diag.New(nil, nil)
	e := newEngine(s, d, Config{})

	plan, err := e.Plan(t.Context(), Request{
		Users:    models.NameList{"u1"},
		Accounts: models.NameList{"physics"},
		Clusters: models.NameList{"c1", "c9"},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.AssociationKey{
		{User: "u1", Account: "physics", Cluster: "c1"},
	}, keys(plan.Associations))
	assert.Equal(t, 1, d.Count(diag.KindReference))

	_, err = e.Plan(t.Context(), Request{
		Users:    models.NameList{"u1"},
		Accounts: models.NameList{"physics"},
		Clusters: models.NameList{"c9"},
	})
	require.Error(t, err)
}

func TestPlanPreconditions(t *testing.T) {
	empty, err := sqlite.Open(t.Context(), sqlite.Config{Path: filepath.Join(t.TempDir(), "empty.db")})
	require.NoError(t, err)

	defer empty.Close()

	tests := []struct {
		name  string
		store storage.Storage
		req   Request
		msg   string
	}{
		{
			name:  "no users",
			store: newStore(t),
			req:   Request{Accounts: models.NameList{"physics"}},
			msg:   "Need name of user to add.",
		},
		{
			name:  "no clusters",
			store: empty,
			req:   Request{Users: models.NameList{"u1"}, Accounts: models.NameList{"physics"}},
			msg:   "Can't add users, no cluster defined yet.",
		},
		{
			name:  "no accounts",
			store: newStore(t),
			req:   Request{Users: models.NameList{"u1"}},
			msg:   "Need name of account to add user to.",
		},
		{
			name:  "no default account",
			store: newStore(t),
			req:   Request{Users: models.NameList{"u1"}, WCKeys: models.NameList{"w1"}},
			msg:   "Need a default account for these users to add.",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			e := newEngine(test.store, diag.New(nil, nil), Config{})

			_, err := e.Plan(t.Context(), test.req)
			require.Error(t, err)
			assert.Equal(t, diag.KindPrecondition, diag.KindOf(err))
			assert.Contains(t, err.Error(), test.msg)
		})
	}
}

func TestPlanBlankName(t *testing.T) {
	s := newStore(t)
	d := diag.New(nil, nil)
	e := newEngine(s, d, Config{})

	plan, err := e.Plan(t.Context(), Request{
		Users:    models.NameList{" ", "u1"},
		Accounts: models.NameList{"physics"},
		Clusters: models.NameList{"c1"},
	})
	require.NoError(t, err)
	require.Len(t, plan.Users, 1)
	assert.Equal(t, 1, d.Count(diag.KindPrecondition))
}

func TestPlanWCKeys(t *testing.T) {
	s := newStore(t)
	d := diag.New(nil, nil)
	e := newEngine(s, d, Config{TrackWCKey: true})

	require.NoError(t, s.AddWCKeys(t.Context(), []models.WCKey{{User: "u1", Name: "w2", Cluster: "c1"}}))

	plan, err := e.Plan(t.Context(), Request{
		Users:    models.NameList{"u1"},
		Accounts: models.NameList{"physics"},
		Clusters: models.NameList{"c1"},
		WCKeys:   models.NameList{"w1", "w2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "w1", plan.DefaultWCKey)
	require.Len(t, plan.Users, 1)
	assert.Equal(t, "w1", plan.Users[0].DefaultWCKey)
	assert.Equal(t, []models.WCKey{{User: "u1", Name: "w1", Cluster: "c1", IsDefault: true}}, plan.WCKeys)
	assert.Equal(t, plan.WCKeys, plan.Users[0].WCKeys)
}

func TestPlanWCKeysNotTracked(t *testing.T) {
	s := newStore(t)
	e := newEngine(s, diag.New(nil, nil), Config{})

	plan, err := e.Plan(t.Context(), Request{
		Users:    models.NameList{"u1"},
		Accounts: models.NameList{"physics"},
		WCKeys:   models.NameList{"w1"},
	})
	require.NoError(t, err)
	assert.Empty(t, plan.WCKeys)
	assert.Empty(t, plan.DefaultWCKey)
}

// failingWCKeys fails every wckey lookup with err.
type failingWCKeys struct {
	storage.Storage
	err error
}

func (f failingWCKeys) WCKeys(context.Context, *models.WCKeyCondition) ([]models.WCKey, error) {
	return nil, f.err
}

func TestPlanWCKeyLookupPolicy(t *testing.T) {
	errBroken := errors.New("broken pipe")

	tests := []struct {
		name   string
		policy WCKeyLookupPolicy
		err    error
		fail   bool
	}{
		{name: "tolerate", policy: WCKeyTolerate, err: errBroken},
		{name: "permission denied", policy: WCKeyPermission, err: storage.ErrPermissionDenied},
		{name: "permission other", policy: WCKeyPermission, err: errBroken, fail: true},
		{name: "strict", policy: WCKeyStrict, err: storage.ErrPermissionDenied, fail: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := failingWCKeys{Storage: newStore(t), err: test.err}
			e := newEngine(s, diag.New(nil, nil), Config{TrackWCKey: true, WCKeyPolicy: test.policy})

			plan, err := e.Plan(t.Context(), Request{
				Users:    models.NameList{"u1"},
				Accounts: models.NameList{"physics"},
				Clusters: models.NameList{"c1"},
				WCKeys:   models.NameList{"w1"},
			})
			if test.fail {
				require.Error(t, err)
				require.ErrorIs(t, err, test.err)
				assert.Equal(t, diag.KindBackend, diag.KindOf(err))

				return
			}

			require.NoError(t, err)
			assert.Len(t, plan.WCKeys, 1)
		})
	}
}

func TestPlanUnknownUID(t *testing.T) {
	for _, answer := range []bool{true, false} {
		s := newStore(t)
		d := diag.New(nil, nil)
		p := &prompt.Scripted{Answers: []bool{answer}}
		e := newEngine(s, d, Config{Prompter: p, Identity: identity.Static{}})

		plan, err := e.Plan(t.Context(), Request{
			Users:    models.NameList{"ghost"},
			Accounts: models.NameList{"physics"},
			Clusters: models.NameList{"c1"},
		})
		require.Equal(t, []string{"There is no uid for user 'ghost'\nAre you sure you want to continue?"}, p.Questions)

		if answer {
			require.NoError(t, err)
			assert.Len(t, plan.Users, 1)
			assert.False(t, d.Failed())

			continue
		}

		require.NoError(t, err)
		assert.True(t, plan.Empty())
		assert.Equal(t, 1, d.Count(diag.KindPrecondition))
	}
}

func TestPreview(t *testing.T) {
	plan := &Plan{
		Users:          []models.User{{Name: "u1"}},
		DefaultAccount: "physics",
		DefaultWCKey:   "w1",
		AdminLevel:     models.AdminOperator,
		Associations: []models.Association{
			{User: "u1", Account: "physics", Cluster: "c1"},
			{User: "u1", Account: "physics", Cluster: "c2", Partition: "p1"},
		},
		WCKeys:   []models.WCKey{{User: "u1", Name: "w1", Cluster: "c1"}},
		Template: models.Limits{GrpJobs: func() *int64 { v := int64(4); return &v }()},
	}

	var out bytes.Buffer

	plan.Preview(&out)

	expected := ` Adding User(s)
  u1
 Settings =
  Default Account = physics
  Default WCKey   = w1
  Admin Level     = Operator
 Associations =
  U = u1        A = physics    C = c1
  U = u1        A = physics    C = c2         P = p1
 WCKeys =
  U = u1        W = w1         C = c1
 Non Default Settings
  GrpJobs       = 4
`
	assert.Equal(t, expected, out.String())
}
