// Package identity resolves user names into system uids.
package identity

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"strings"
)

// ErrUnknownUser is returned when a user name has no uid.
var ErrUnknownUser = errors.New("no uid for user")

// Resolver resolves user names into uids.
type Resolver interface {
	LookupUID(name string) (uint32, error)
}

// System resolves names with the system user database.
type System struct{}

// LookupUID implements Resolver interface.
func (System) LookupUID(name string) (uint32, error) {
	u, err := user.Lookup(name)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return 0, fmt.Errorf("%w '%s'", ErrUnknownUser, name)
		}

		return 0, err
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid uid %s of user %s: %w", u.Uid, name, err)
	}

	return uint32(uid), nil
}

// Static resolves names from a fixed map. Names compare case-insensitively.
type Static map[string]uint32

// LookupUID implements Resolver interface.
func (s Static) LookupUID(name string) (uint32, error) {
	for n, uid := range s {
		if strings.EqualFold(n, name) {
			return uid, nil
		}
	}

	return 0, fmt.Errorf("%w '%s'", ErrUnknownUser, name)
}
