package coord

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.Open(t.Context(), sqlite.Config{Path: filepath.Join(t.TempDir(), "accounting.db")})
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.AddClusters(t.Context(), []models.Cluster{{Name: "c1"}}))
	require.NoError(t, s.AddAccounts(t.Context(), []models.Account{{Name: "physics", Clusters: models.NameList{"c1"}}}))
	require.NoError(t, s.AddUsers(t.Context(), []models.User{{Name: "alice", AdminLevel: models.AdminNone, DefaultAccount: "physics"}}))

	return s
}

func condition(users, accounts string) *models.UserCondition {
	cond := models.NewUserCondition()
	cond.Assoc.Users.Add(users)
	cond.Assoc.Accounts.Add(accounts)

	return cond
}

func TestCheck(t *testing.T) {
	s := newStore(t)
	d := diag.New(nil, nil)
	v := NewValidator(s, d, nil)

	require.NoError(t, v.Check(t.Context(), condition("ALICE", "physics"), true))
	assert.False(t, d.Failed())
}

func TestCheckReportsAllMissing(t *testing.T) {
	s := newStore(t)

	var out bytes.Buffer

	d := diag.New(&out, nil)
	v := NewValidator(s, d, nil)

	err := v.Check(t.Context(), condition("alice,ghost,phantom", "physics,nosuchacct"), true)
	require.ErrorIs(t, err, ErrUnresolved)
	assert.Equal(t, 3, d.Count(diag.KindReference))
	assert.Equal(t, ` You specified a non-existent account 'nosuchacct'.
 You specified a non-existent user 'ghost'.
 You specified a non-existent user 'phantom'.
`, out.String())
}

func TestCheckRequireLists(t *testing.T) {
	s := newStore(t)
	v := NewValidator(s, diag.New(nil, nil), nil)

	err := v.Check(t.Context(), condition("alice", ""), true)
	require.Error(t, err)
	assert.Equal(t, diag.KindPrecondition, diag.KindOf(err))
	assert.Contains(t, err.Error(), "account list")

	err = v.Check(t.Context(), condition("", "physics"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user list")

	// Revocations only check given lists
	require.NoError(t, v.Check(t.Context(), condition("", "physics"), false))
}

type failingAccounts struct {
	storage.Storage
}

func (failingAccounts) Accounts(context.Context, *models.AccountCondition) ([]models.Account, error) {
	return nil, errors.New("connection refused")
}

func TestCheckBackendError(t *testing.T) {
	v := NewValidator(failingAccounts{newStore(t)}, diag.New(nil, nil), nil)

	err := v.Check(t.Context(), condition("alice", "physics"), true)
	require.Error(t, err)
	assert.Equal(t, diag.KindBackend, diag.KindOf(err))
	assert.NotErrorIs(t, err, ErrUnresolved)
}
