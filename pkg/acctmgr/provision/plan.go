package provision

import (
	"fmt"
	"io"
	"strings"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
)

// Plan is the set of records to create for an add user directive.
type Plan struct {
	Users          []models.User
	Associations   []models.Association
	WCKeys         []models.WCKey
	DefaultAccount string
	DefaultWCKey   string
	AdminLevel     models.AdminLevel
	Template       models.Limits
}

// Empty returns true when the plan creates nothing.
func (p *Plan) Empty() bool {
	return p == nil || (len(p.Users) == 0 && len(p.Associations) == 0 && len(p.WCKeys) == 0)
}

// Preview writes the records of the plan to w.
func (p *Plan) Preview(w io.Writer) {
	if p.Empty() {
		return
	}

	if len(p.Users) > 0 {
		fmt.Fprintln(w, " Adding User(s)")

		for _, u := range p.Users {
			fmt.Fprintf(w, "  %s\n", u.Name)
		}

		fmt.Fprintln(w, " Settings =")
		fmt.Fprintf(w, "  Default Account = %s\n", p.DefaultAccount)

		if p.DefaultWCKey != "" {
			fmt.Fprintf(w, "  Default WCKey   = %s\n", p.DefaultWCKey)
		}

		if p.AdminLevel != models.AdminNotSet {
			fmt.Fprintf(w, "  Admin Level     = %s\n", p.AdminLevel)
		}
	}

	if len(p.Associations) > 0 {
		fmt.Fprintln(w, " Associations =")

		for _, a := range p.Associations {
			line := fmt.Sprintf("  U = %-9.9s A = %-10.10s C = %-10.10s", a.User, a.Account, a.Cluster)
			if a.Partition != "" {
				line += fmt.Sprintf(" P = %-10.10s", a.Partition)
			}

			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}

	if len(p.WCKeys) > 0 {
		fmt.Fprintln(w, " WCKeys =")

		for _, k := range p.WCKeys {
			line := fmt.Sprintf("  U = %-9.9s W = %-10.10s C = %-10.10s", k.User, k.Name, k.Cluster)
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}

	if p.Template.IsSet() {
		fmt.Fprintln(w, " Non Default Settings")
		p.Template.Print(w)
	}
}
