package report

import (
	"bytes"
	"testing"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	return names
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	f, err = ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("yaml")
	require.Error(t, err)
}

func TestParseFields(t *testing.T) {
	fields, err := ParseFields([]string{"U", "DefaultA", "Ad", "MaxCPUs", "MaxCPUMins", "Share%5", "DefaultQOS", "Coord"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"User", "DefaultAccount", "AdminLevel", "MaxCPUsPerJob", "MaxCPUMinsPerJob", "Shares", "DefaultQOS", "Coordinators",
	}, fieldNames(fields))
	assert.Equal(t, 5, fields[5].Width)
	assert.Equal(t, 10, fields[0].Width)
}

func TestParseFieldsErrors(t *testing.T) {
	fields, err := ParseFields([]string{"A", "User", "Default", "User%x"})
	require.ErrorIs(t, err, ErrUnknownField)
	assert.Contains(t, err.Error(), "unknown field: A")
	assert.Contains(t, err.Error(), "unknown field: Default")
	assert.Contains(t, err.Error(), "invalid width in field User%x")
	assert.Equal(t, []string{"User"}, fieldNames(fields))
}

func TestDefaultFields(t *testing.T) {
	cond := models.NewUserCondition()
	assert.Equal(t, []string{"U", "DefaultA", "Ad"}, DefaultFields(cond, false))
	assert.Equal(t, []string{"U", "DefaultA", "DefaultW", "Ad"}, DefaultFields(cond, true))

	cond.WithAssocs = true
	cond.WithCoords = true

	fields := DefaultFields(cond, false)
	assert.Len(t, fields, 16)
	assert.Equal(t, "Cl", fields[3])
	assert.Equal(t, "Coord", fields[15])

	parsed, err := ParseFields(fields)
	require.NoError(t, err)
	assert.Len(t, parsed, 16)
}

func TestUsersCSV(t *testing.T) {
	users := []models.User{
		{
			Name:           "alice",
			AdminLevel:     models.AdminNone,
			DefaultAccount: "physics",
			Associations: []models.Association{
				{User: "alice", Account: "physics", Cluster: "c1", Limits: models.Limits{MaxJobs: int64Ptr(10)}},
				{User: "alice", Account: "physics", Cluster: "c2", Limits: models.Limits{MaxWallPerJob: int64Ptr(90)}},
			},
		},
		{Name: "bob", AdminLevel: models.AdminOperator, DefaultAccount: "chemistry", Coordinators: []string{"chemistry"}},
	}

	fields, err := ParseFields([]string{"U", "DefaultA", "Ad", "Cl", "Acc", "MaxJ", "MaxW", "Coord"})
	require.NoError(t, err)

	var buf bytes.Buffer

	Users(&buf, users, fields, FormatCSV)

	expected := `User,Def Acct,Admin,Cluster,Account,MaxJobs,MaxWall,Coord Accounts
alice,physics,None,c1,physics,10,,
alice,physics,None,c2,physics,,01:30:00,
bob,chemistry,Operator,,,,,chemistry
`
	assert.Equal(t, expected, buf.String())
}

func TestUsersTable(t *testing.T) {
	users := []models.User{{Name: "averyveryverylongname", AdminLevel: models.AdminNone, DefaultAccount: "physics"}}

	fields, err := ParseFields([]string{"User%6", "DefaultA"})
	require.NoError(t, err)

	var buf bytes.Buffer

	Users(&buf, users, fields, FormatTable)

	out := buf.String()
	assert.Contains(t, out, "averyv")
	assert.NotContains(t, out, "averyve")
	assert.Contains(t, out, "Def Acct")
	assert.Contains(t, out, "physics")
}
