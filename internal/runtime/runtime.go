// Package runtime implements the utility functions to fetch runtime info of
// the operator session
package runtime

import (
	"os"
	"os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Uname returns the uname of the host machine.
func Uname() string {
	buf := unix.Utsname{}

	if err := unix.Uname(&buf); err != nil {
		return "(unknown)"
	}

	fields := []string{
		unix.ByteSliceToString(buf.Sysname[:]),
		unix.ByteSliceToString(buf.Release[:]),
		unix.ByteSliceToString(buf.Machine[:]),
		unix.ByteSliceToString(buf.Nodename[:]),
	}

	return "(" + strings.Join(fields, " ") + ")"
}

// Operator returns the login name of the user running the process or the
// numeric uid when the name cannot be resolved.
func Operator() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}

	return strconv.Itoa(os.Getuid())
}
