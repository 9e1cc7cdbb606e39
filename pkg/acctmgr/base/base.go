// Package base defines the names and variables that have global scope
// throughout which can be used in other subpackages
package base

import (
	"fmt"
	"time"
)

// AppName is kingpin app name.
const AppName = "acctmgr"

// AppDescription is the kingpin app help text.
const AppDescription = "Administrative front-end for the cluster accounting database: users, associations and coordinators."

// DatetimeLayout to be used in the package.
var DatetimeLayout = fmt.Sprintf("%sT%s", time.DateOnly, time.TimeOnly)

// Config file names that are looked up in the config directories.
var ConfigFileNames = []string{"acctmgr.yml", "acctmgr.yaml", "config.yml", "config.yaml"}

// System wide config directory.
const SystemConfigDir = "/etc/acctmgr"

// DefaultStoragePath is the SQLite file used when nothing else is configured.
const DefaultStoragePath = "/var/lib/acctmgr/accounting.db"

// Prompt texts shared by the orchestrator and the CLI.
const (
	CommitQuestion = "Would you like to commit changes?"
	DiscardedMsg   = " Changes Discarded"
)
