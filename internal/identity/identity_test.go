package identity

import (
	"os/user"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem(t *testing.T) {
	current, err := user.Current()
	require.NoError(t, err)

	uid, err := System{}.LookupUID(current.Username)
	require.NoError(t, err)
	assert.Equal(t, current.Uid, strconv.FormatUint(uint64(uid), 10))

	_, err = System{}.LookupUID("acctmgr-no-such-user-xyz")
	require.Error(t, err)
}

func TestStatic(t *testing.T) {
	r := Static{"alice": 1000}

	uid, err := r.LookupUID("ALICE")
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), uid)

	_, err = r.LookupUID("bob")
	require.ErrorIs(t, err, ErrUnknownUser)
}
