package runtime

import (
	"os/user"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUname(t *testing.T) {
	uname := Uname()
	assert.True(t, strings.HasPrefix(uname, "("))
	assert.True(t, strings.HasSuffix(uname, ")"))
	assert.Contains(t, uname, "Linux")
}

func TestOperator(t *testing.T) {
	u, err := user.Current()
	if err != nil {
		t.Skip("current user cannot be resolved")
	}

	assert.Equal(t, u.Username, Operator())
}
