package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUuid(t *testing.T) {
	expected := "d808af89-684c-6f3f-a474-8d22b566dd12"
	got, err := GetUUIDFromString([]string{"foo", "1234", "bar567"})
	require.NoError(t, err)
	assert.Equal(t, expected, got, "mismatched UUIDs")
}

type testConfig struct {
	Name    string   `yaml:"name"`
	Entries []string `yaml:"entries"`
}

func TestMakeConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: acct\nentries: [a, b]\n"), 0o600))

	config, err := MakeConfig[testConfig](path)
	require.NoError(t, err)
	assert.Equal(t, "acct", config.Name)
	assert.Equal(t, []string{"a", "b"}, config.Entries)

	_, err = MakeConfig[testConfig]("")
	require.Error(t, err)

	_, err = MakeConfig[testConfig](filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitList(`"a, b,,c"`))
	assert.Equal(t, []string{"x"}, SplitList(`'x'`))
	assert.Empty(t, SplitList(" , "))
	assert.Equal(t, "name", StripQuotes(` "name" `))
}
