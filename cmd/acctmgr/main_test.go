package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binary, _ = filepath.Abs("../../bin/acctmgr")

func TestAcctMgrExecutable(t *testing.T) {
	if _, err := os.Stat(binary); err != nil {
		t.Skipf("acctmgr binary not available, build it into bin/ first: %s", err)
	}

	storagePath := filepath.Join(t.TempDir(), "accounting.db")

	out, err := exec.Command(binary, "--storage.path", storagePath, "-i", "add", "cluster", "c1").CombinedOutput()
	require.NoError(t, err, string(out))
	assert.Contains(t, string(out), "Adding Cluster(s)")

	// Parse errors exit with a non zero status
	out, err = exec.Command(binary, "--storage.path", storagePath, "-i", "add", "user", "carol", "bogus=1").CombinedOutput()
	require.Error(t, err)
	assert.Contains(t, string(out), "Unknown option: bogus=1")
}
