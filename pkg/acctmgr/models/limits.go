package models

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ClearValue is the limit value that removes a limit.
const ClearValue int64 = -1

// ErrInvalidTime is returned for malformed wall clock limits.
var ErrInvalidTime = errors.New("invalid time format")

// Limits is the set of limits carried by an association. Nil values are not
// set and ClearValue means unlimited.
type Limits struct {
	Shares           *int64   `json:"shares"               sql:"shares"              sqlitetype:"integer"`
	GrpCPUMins       *int64   `json:"grp_cpu_mins"         sql:"grp_cpu_mins"        sqlitetype:"integer"`
	GrpCPUs          *int64   `json:"grp_cpus"             sql:"grp_cpus"            sqlitetype:"integer"`
	GrpJobs          *int64   `json:"grp_jobs"             sql:"grp_jobs"            sqlitetype:"integer"`
	GrpNodes         *int64   `json:"grp_nodes"            sql:"grp_nodes"           sqlitetype:"integer"`
	GrpSubmitJobs    *int64   `json:"grp_submit_jobs"      sql:"grp_submit_jobs"     sqlitetype:"integer"`
	GrpWall          *int64   `json:"grp_wall"             sql:"grp_wall"            sqlitetype:"integer"`
	MaxCPUMinsPerJob *int64   `json:"max_cpu_mins_per_job" sql:"max_cpu_mins_pj"     sqlitetype:"integer"`
	MaxCPUsPerJob    *int64   `json:"max_cpus_per_job"     sql:"max_cpus_pj"         sqlitetype:"integer"`
	MaxJobs          *int64   `json:"max_jobs"             sql:"max_jobs"            sqlitetype:"integer"`
	MaxNodesPerJob   *int64   `json:"max_nodes_per_job"    sql:"max_nodes_pj"        sqlitetype:"integer"`
	MaxSubmitJobs    *int64   `json:"max_submit_jobs"      sql:"max_submit_jobs"     sqlitetype:"integer"`
	MaxWallPerJob    *int64   `json:"max_wall_per_job"     sql:"max_wall_pj"         sqlitetype:"integer"`
	QOS              NameList `json:"qos"                  sql:"qos"                 sqlitetype:"text"`
	DefaultQOS       string   `json:"default_qos"          sql:"def_qos"             sqlitetype:"text"`
}

// LimitEntry is one numeric limit of Limits.
type LimitEntry struct {
	Name   string
	Column string
	Value  *int64
	Wall   bool
}

// Entries returns the numeric limits in display order.
func (l Limits) Entries() []LimitEntry {
	return []LimitEntry{
		{"Fairshare", "shares", l.Shares, false},
		{"GrpCPUMins", "grp_cpu_mins", l.GrpCPUMins, false},
		{"GrpCPUs", "grp_cpus", l.GrpCPUs, false},
		{"GrpJobs", "grp_jobs", l.GrpJobs, false},
		{"GrpNodes", "grp_nodes", l.GrpNodes, false},
		{"GrpSubmitJobs", "grp_submit_jobs", l.GrpSubmitJobs, false},
		{"GrpWall", "grp_wall", l.GrpWall, true},
		{"MaxCPUMins", "max_cpu_mins_pj", l.MaxCPUMinsPerJob, false},
		{"MaxCPUs", "max_cpus_pj", l.MaxCPUsPerJob, false},
		{"MaxJobs", "max_jobs", l.MaxJobs, false},
		{"MaxNodes", "max_nodes_pj", l.MaxNodesPerJob, false},
		{"MaxSubmitJobs", "max_submit_jobs", l.MaxSubmitJobs, false},
		{"MaxWall", "max_wall_pj", l.MaxWallPerJob, true},
	}
}

// IsSet returns true when at least one limit is set.
func (l Limits) IsSet() bool {
	for _, e := range l.Entries() {
		if e.Value != nil {
			return true
		}
	}

	return len(l.QOS) > 0 || l.DefaultQOS != ""
}

// Clone returns a deep copy of the limits.
func (l Limits) Clone() Limits {
	c := l

	for _, p := range []**int64{
		&c.Shares, &c.GrpCPUMins, &c.GrpCPUs, &c.GrpJobs, &c.GrpNodes, &c.GrpSubmitJobs, &c.GrpWall,
		&c.MaxCPUMinsPerJob, &c.MaxCPUsPerJob, &c.MaxJobs, &c.MaxNodesPerJob, &c.MaxSubmitJobs, &c.MaxWallPerJob,
	} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}

	if l.QOS != nil {
		c.QOS = append(NameList{}, l.QOS...)
	}

	return c
}

// Print writes the set limits one per line.
func (l Limits) Print(w io.Writer) {
	for _, e := range l.Entries() {
		if e.Value == nil {
			continue
		}

		fmt.Fprintf(w, "  %-14s= %s\n", e.Name, FormatLimit(e.Value, e.Wall))
	}

	if len(l.QOS) > 0 {
		fmt.Fprintf(w, "  %-14s= %s\n", "QOS", l.QOS.String())
	}

	if l.DefaultQOS != "" {
		fmt.Fprintf(w, "  %-14s= %s\n", "DefaultQOS", l.DefaultQOS)
	}
}

// FormatLimit returns the display form of a limit value.
func FormatLimit(v *int64, wall bool) string {
	switch {
	case v == nil:
		return ""
	case *v == ClearValue:
		return "NONE"
	case wall:
		return FormatWall(*v)
	default:
		return strconv.FormatInt(*v, 10)
	}
}

// ParseLimit parses a numeric limit. -1 clears the limit.
func ParseLimit(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}

	if v < ClearValue {
		return 0, fmt.Errorf("negative value %d", v)
	}

	return v, nil
}

// ParseWallMinutes parses a wall clock limit into minutes. Accepted forms are
// minutes, minutes:seconds, hours:minutes:seconds, days-hours,
// days-hours:minutes, days-hours:minutes:seconds, UNLIMITED and -1.
// Seconds round up to the next minute.
func ParseWallMinutes(s string) (int64, error) {
	s = strings.TrimSpace(s)

	switch strings.ToLower(s) {
	case "":
		return 0, fmt.Errorf("%w: empty value", ErrInvalidTime)
	case "-1", "unlimited", "infinite":
		return ClearValue, nil
	}

	var days, hours, minutes, seconds int64

	rest := s

	d, r, withDays := strings.Cut(s, "-")
	if withDays {
		v, err := parseTimeField(d)
		if err != nil {
			return 0, err
		}

		days, rest = v, r
	}

	parts := strings.Split(rest, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTime, s)
	}

	fields := make([]int64, len(parts))

	for i, p := range parts {
		v, err := parseTimeField(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidTime, s)
		}

		fields[i] = v
	}

	switch {
	case withDays:
		// days-hours[:minutes[:seconds]]
		hours = fields[0]
		if len(fields) > 1 {
			minutes = fields[1]
		}

		if len(fields) > 2 {
			seconds = fields[2]
		}
	case len(fields) == 1:
		minutes = fields[0]
	case len(fields) == 2:
		minutes, seconds = fields[0], fields[1]
	default:
		hours, minutes, seconds = fields[0], fields[1], fields[2]
	}

	total := days*24*60 + hours*60 + minutes + int64(math.Ceil(float64(seconds)/60))

	return total, nil
}

func parseTimeField(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTime, s)
	}

	return v, nil
}

// FormatWall returns minutes as [days-]hours:minutes:seconds.
func FormatWall(minutes int64) string {
	days := minutes / (24 * 60)
	hours := (minutes / 60) % 24
	mins := minutes % 60

	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:00", days, hours, mins)
	}

	return fmt.Sprintf("%02d:%02d:00", hours, mins)
}
