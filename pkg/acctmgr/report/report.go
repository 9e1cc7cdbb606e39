// Package report renders the users returned by list directives.
package report

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/clause"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// OutputFormat is the rendering format of a report.
type OutputFormat string

// Output formats.
const (
	FormatTable    OutputFormat = "table"
	FormatCSV      OutputFormat = "csv"
	FormatMarkdown OutputFormat = "markdown"
	FormatHTML     OutputFormat = "html"
)

// Formats returns the names of the output formats.
func Formats() []string {
	return []string{string(FormatTable), string(FormatCSV), string(FormatMarkdown), string(FormatHTML)}
}

// ErrUnknownField is returned for format fields that match no column.
var ErrUnknownField = errors.New("unknown field")

// ParseFormat parses an output format name. Empty selects the table.
func ParseFormat(s string) (OutputFormat, error) {
	if s == "" {
		return FormatTable, nil
	}

	f := OutputFormat(strings.ToLower(s))
	if !slices.Contains(Formats(), string(f)) {
		return "", fmt.Errorf("invalid output format %q, must be one of %s", s, strings.Join(Formats(), ", "))
	}

	return f, nil
}

// column is a container for each column metadata in the report.
type column struct {
	title string
	width int
	user  func(u models.User) string
	assoc func(a models.Association) string
}

func limitColumn(title string, get func(a models.Association) *int64, wall bool) column {
	return column{
		title: title,
		width: 9,
		assoc: func(a models.Association) string { return models.FormatLimit(get(a), wall) },
	}
}

// Field names. Fields are matched by case insensitive prefix of at least
// the minimum length of their table entry.
var fieldTable = clause.Table{
	{Name: "User", MinLen: 1},
	{Name: "DefaultAccount", MinLen: 8},
	{Name: "DefaultWCKey", MinLen: 8},
	{Name: "DefaultQOS", MinLen: 8},
	{Name: "AdminLevel", MinLen: 2},
	{Name: "Coordinators", MinLen: 5},
	{Name: "Cluster", MinLen: 2},
	{Name: "Account", MinLen: 3},
	{Name: "Partition", MinLen: 4},
	{Name: "ParentName", MinLen: 4},
	{Name: "Shares", MinLen: 2},
	{Name: "Fairshare", MinLen: 1},
	{Name: "GrpCPUMins", MinLen: 7},
	{Name: "GrpCPUs", MinLen: 7},
	{Name: "GrpJobs", MinLen: 4},
	{Name: "GrpNodes", MinLen: 4},
	{Name: "GrpSubmitJobs", MinLen: 4},
	{Name: "GrpWall", MinLen: 4},
	{Name: "MaxCPUMinsPerJob", MinLen: 7},
	{Name: "MaxCPUsPerJob", MinLen: 7},
	{Name: "MaxJobs", MinLen: 4},
	{Name: "MaxNodesPerJob", MinLen: 4},
	{Name: "MaxSubmitJobs", MinLen: 4},
	{Name: "MaxWallDurationPerJob", MinLen: 4},
	{Name: "QOS", MinLen: 1},
	{Name: "RawUsage", MinLen: 3},
}

var columns = map[string]column{
	"User": {title: "User", width: 10, user: func(u models.User) string { return u.Name }},
	"DefaultAccount": {
		title: "Def Acct", width: 10,
		user: func(u models.User) string { return u.DefaultAccount },
	},
	"DefaultWCKey": {
		title: "Def WCKey", width: 10,
		user: func(u models.User) string { return u.DefaultWCKey },
	},
	"AdminLevel": {
		title: "Admin", width: 9,
		user: func(u models.User) string { return u.AdminLevel.String() },
	},
	"Coordinators": {
		title: "Coord Accounts", width: 20,
		user: func(u models.User) string { return strings.Join(u.Coordinators, ",") },
	},
	"Cluster":    {title: "Cluster", width: 10, assoc: func(a models.Association) string { return a.Cluster }},
	"Account":    {title: "Account", width: 10, assoc: func(a models.Association) string { return a.Account }},
	"Partition":  {title: "Partition", width: 10, assoc: func(a models.Association) string { return a.Partition }},
	"ParentName": {title: "Par Name", width: 10, assoc: func(a models.Association) string { return a.ParentAccount }},
	"Shares":     limitColumn("Share", func(a models.Association) *int64 { return a.Shares }, false),
	"Fairshare":  limitColumn("Share", func(a models.Association) *int64 { return a.Shares }, false),
	"GrpCPUMins": limitColumn("GrpCPUMins", func(a models.Association) *int64 { return a.GrpCPUMins }, false),
	"GrpCPUs":    limitColumn("GrpCPUs", func(a models.Association) *int64 { return a.GrpCPUs }, false),
	"GrpJobs":    limitColumn("GrpJobs", func(a models.Association) *int64 { return a.GrpJobs }, false),
	"GrpNodes":   limitColumn("GrpNodes", func(a models.Association) *int64 { return a.GrpNodes }, false),
	"GrpSubmitJobs": limitColumn(
		"GrpSubmit", func(a models.Association) *int64 { return a.GrpSubmitJobs }, false,
	),
	"GrpWall": limitColumn("GrpWall", func(a models.Association) *int64 { return a.GrpWall }, true),
	"MaxCPUMinsPerJob": limitColumn(
		"MaxCPUMins", func(a models.Association) *int64 { return a.MaxCPUMinsPerJob }, false,
	),
	"MaxCPUsPerJob":  limitColumn("MaxCPUs", func(a models.Association) *int64 { return a.MaxCPUsPerJob }, false),
	"MaxJobs":        limitColumn("MaxJobs", func(a models.Association) *int64 { return a.MaxJobs }, false),
	"MaxNodesPerJob": limitColumn("MaxNodes", func(a models.Association) *int64 { return a.MaxNodesPerJob }, false),
	"MaxSubmitJobs": limitColumn(
		"MaxSubmit", func(a models.Association) *int64 { return a.MaxSubmitJobs }, false,
	),
	"MaxWallDurationPerJob": limitColumn(
		"MaxWall", func(a models.Association) *int64 { return a.MaxWallPerJob }, true,
	),
	"QOS": {title: "QOS", width: 20, assoc: func(a models.Association) string { return a.QOS.String() }},
	"DefaultQOS": {
		title: "Def QOS", width: 9,
		assoc: func(a models.Association) string { return a.DefaultQOS },
	},
	"RawUsage": {
		title: "RawUsage", width: 11,
		assoc: func(a models.Association) string { return strconv.FormatFloat(a.RawUsage, 'f', -1, 64) },
	},
}

// Field is a selected report column.
type Field struct {
	Name  string
	Width int
	col   column
}

// ParseFields parses format field names. A '%N' suffix sets the column
// width to N.
func ParseFields(names []string) ([]Field, error) {
	fields := make([]Field, 0, len(names))

	var errs error

	for _, raw := range names {
		name, width, _ := strings.Cut(strings.TrimSpace(raw), "%")

		kw, ok := fieldTable.Match(name, false)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("%w: %s", ErrUnknownField, raw))

			continue
		}

		f := Field{Name: kw, col: columns[kw]}
		f.Width = f.col.width

		if width != "" {
			w, err := strconv.Atoi(width)
			if err != nil || w <= 0 {
				errs = errors.Join(errs, fmt.Errorf("invalid width in field %s", raw))

				continue
			}

			f.Width = w
		}

		fields = append(fields, f)
	}

	return fields, errs
}

// DefaultFields returns the format fields used when none are requested.
func DefaultFields(cond *models.UserCondition, trackWCKey bool) []string {
	fields := []string{"U", "DefaultA", "Ad"}
	if trackWCKey {
		fields = []string{"U", "DefaultA", "DefaultW", "Ad"}
	}

	if cond != nil && cond.WithAssocs {
		fields = append(fields,
			"Cl", "Acc", "Part", "Share", "MaxJ", "MaxN", "MaxCPUs", "MaxS", "MaxW", "MaxCPUMins", "QOS", "DefaultQOS",
		)
	}

	if cond != nil && cond.WithCoords {
		fields = append(fields, "Coord")
	}

	return fields
}

// newTable returns a new table with the headers of fields.
func newTable(w io.Writer, fields []Field) table.Writer {
	t := table.NewWriter()

	style := table.Style{
		Name:    "CustomStyleLight",
		Box:     table.StyleBoxLight,
		Color:   table.ColorOptionsDefault,
		HTML:    table.DefaultHTMLOptions,
		Options: table.OptionsDefault,
		Size:    table.SizeOptionsDefault,
		Title:   table.TitleOptionsDefault,
		Format: table.FormatOptions{
			Footer: text.FormatDefault,
			Header: text.FormatDefault,
			Row:    text.FormatDefault,
		},
	}

	headers := make(table.Row, len(fields))
	columnConfigs := make([]table.ColumnConfig, len(fields))

	for i, f := range fields {
		headers[i] = f.col.title
		columnConfigs[i] = table.ColumnConfig{
			Number:           i + 1,
			WidthMax:         f.Width,
			WidthMaxEnforcer: text.Trim,
		}
	}

	t.SuppressTrailingSpaces()
	t.SetStyle(style)
	t.SetOutputMirror(w)
	t.SetColumnConfigs(columnConfigs)
	t.AppendHeader(headers)

	return t
}

func row(fields []Field, u models.User, a *models.Association) table.Row {
	r := make(table.Row, len(fields))

	for i, f := range fields {
		switch {
		case f.col.user != nil:
			r[i] = f.col.user(u)
		case a != nil:
			r[i] = f.col.assoc(*a)
		default:
			r[i] = ""
		}
	}

	return r
}

// Users renders one row per association of each user, or one row per user
// without associations.
func Users(w io.Writer, users []models.User, fields []Field, format OutputFormat) {
	t := newTable(w, fields)

	for _, u := range users {
		if len(u.Associations) == 0 {
			t.AppendRow(row(fields, u, nil))

			continue
		}

		for _, a := range u.Associations {
			t.AppendRow(row(fields, u, &a))
		}
	}

	// Based on request rendering format
	switch format {
	case FormatHTML:
		t.RenderHTML()
	case FormatCSV:
		t.RenderCSV()
	case FormatMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
	}
}
