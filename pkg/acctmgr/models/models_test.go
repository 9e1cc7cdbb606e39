package models

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAdminLevel(t *testing.T) {
	tests := []struct {
		in      string
		level   AdminLevel
		wantErr bool
	}{
		{in: "None", level: AdminNone},
		{in: "n", level: AdminNone},
		{in: "OPER", level: AdminOperator},
		{in: "Admin", level: AdminSuperUser},
		{in: "administrator", level: AdminSuperUser},
		{in: "SuperUser", level: AdminSuperUser},
		{in: "Nonsense", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, test := range tests {
		level, err := ParseAdminLevel(test.in)
		if test.wantErr {
			require.ErrorIs(t, err, ErrUnknownAdminLevel, test.in)

			continue
		}

		require.NoError(t, err, test.in)
		assert.Equal(t, test.level, level, test.in)
	}

	assert.Equal(t, "Administrator", AdminSuperUser.String())
	assert.Equal(t, "Not Set", AdminNotSet.String())
}

func TestNameList(t *testing.T) {
	var l NameList

	assert.Equal(t, 3, l.Add(`alice,"Bob",'carol'`))
	assert.Equal(t, 1, l.Add("ALICE,dave,,"))
	assert.Equal(t, NameList{"alice", "Bob", "carol", "dave"}, l)
	assert.True(t, l.Contains("bob"))
	assert.Equal(t, 2, l.Index("CAROL"))
	assert.True(t, l.Remove("Carol"))
	assert.False(t, l.Remove("carol"))
	assert.Equal(t, "alice,Bob,dave", l.String())

	var scanned NameList
	require.NoError(t, scanned.Scan([]byte("normal,high")))
	assert.Equal(t, NameList{"normal", "high"}, scanned)
	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)
	require.Error(t, scanned.Scan(12))
}

func TestScope(t *testing.T) {
	assert.True(t, ScopeBoth.Has(ScopeUser))
	assert.True(t, ScopeBoth.Has(ScopeAssoc))
	assert.False(t, ScopeUser.Has(ScopeAssoc))
	assert.False(t, ScopeUser.Has(ScopeNone))
}

func TestParseWallMinutes(t *testing.T) {
	tests := []struct {
		in      string
		minutes int64
		wantErr bool
	}{
		{in: "90", minutes: 90},
		{in: "10:30", minutes: 11},
		{in: "02:00:00", minutes: 120},
		{in: "1-00", minutes: 1440},
		{in: "1-02:30", minutes: 1590},
		{in: "2-00:00:01", minutes: 2881},
		{in: "UNLIMITED", minutes: ClearValue},
		{in: "-1", minutes: ClearValue},
		{in: "1:2:3:4", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, test := range tests {
		got, err := ParseWallMinutes(test.in)
		if test.wantErr {
			require.ErrorIs(t, err, ErrInvalidTime, test.in)

			continue
		}

		require.NoError(t, err, test.in)
		assert.Equal(t, test.minutes, got, test.in)
	}

	assert.Equal(t, "1-02:30:00", FormatWall(1590))
	assert.Equal(t, "02:00:00", FormatWall(120))
}

func TestLimits(t *testing.T) {
	var l Limits
	assert.False(t, l.IsSet())

	jobs := int64(10)
	unlimited := ClearValue
	wall := int64(120)
	l.MaxJobs = &jobs
	l.GrpCPUs = &unlimited
	l.MaxWallPerJob = &wall
	l.QOS = NameList{"normal"}
	assert.True(t, l.IsSet())

	c := l.Clone()
	*c.MaxJobs = 20
	c.QOS[0] = "high"
	assert.Equal(t, int64(10), *l.MaxJobs)
	assert.Equal(t, "normal", l.QOS[0])

	var buf bytes.Buffer
	l.Print(&buf)
	assert.Equal(t, "  GrpCPUs       = NONE\n  MaxJobs       = 10\n  MaxWall       = 02:00:00\n  QOS           = normal\n", buf.String())

	_, err := ParseLimit("-2")
	require.Error(t, err)

	v, err := ParseLimit(" 5 ")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestRecordsIsSet(t *testing.T) {
	assert.False(t, (&UserRecord{}).IsSet())
	assert.True(t, (&UserRecord{NewName: "bob"}).IsSet())
	assert.False(t, (&AssociationRecord{}).IsSet())
	assert.True(t, (&AssociationRecord{QOSOp: ListAdd}).IsSet())
	assert.True(t, (&AssociationRecord{ResetRawUsage: true}).IsSet())

	cond := NewUserCondition()
	assert.True(t, cond.Assoc.IsEmpty())
	cond.Assoc.Users.Add("alice")
	assert.Equal(t, NameList{"alice"}, cond.Users())
	assert.False(t, cond.Assoc.IsEmpty())
}

func TestAssociation(t *testing.T) {
	a := Association{User: "alice", Account: "physics", Cluster: "c1"}
	assert.False(t, a.IsBase())
	assert.True(t, a.Key().Matches(AssociationKey{User: "ALICE", Account: "Physics", Cluster: "C1"}))
	assert.False(t, a.Key().Matches(AssociationKey{User: "alice", Account: "physics", Cluster: "c1", Partition: "gpu"}))
	assert.Contains(t, a.TagNames("sql"), "max_jobs")
	assert.NotContains(t, User{}.TagNames("sql"), "Associations")
}
