package apply

import (
	"context"
	"fmt"
	"strings"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/metrics"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
)

// Account every account hangs from when no parent is given.
const rootAccount = "root"

// AddClusters registers the clusters that do not exist yet.
func (o *Orchestrator) AddClusters(ctx context.Context, clusters []models.Cluster) error {
	if err := o.start(DirectiveAddCluster); err != nil {
		return err
	}

	if len(clusters) == 0 {
		return o.precondition("You need to specify a cluster name.")
	}

	names := make(models.NameList, len(clusters))
	for i, c := range clusters {
		names[i] = c.Name
	}

	existing, err := o.storage.Clusters(ctx, &models.ClusterCondition{Names: names})
	if err != nil {
		return o.fail(diag.Errorf(diag.KindBackend, "Problem getting clusters from database.  Contact your admin.: %w", err))
	}

	var toAdd []models.Cluster

	for _, c := range clusters {
		if clusterExists(existing, c.Name) {
			fmt.Fprintf(o.out, " This cluster %s already exists.  Not adding.\n", c.Name)

			continue
		}

		toAdd = append(toAdd, c)
	}

	if err := o.validated(); err != nil {
		return err
	}

	if len(toAdd) == 0 {
		fmt.Fprintln(o.out, " Nothing new added.")
		o.metrics.Transaction(o.directive, metrics.OutcomeNoop)

		return o.transition(StateDiscarded)
	}

	lines := make([]string, len(toAdd))
	for i, c := range toAdd {
		lines[i] = "Name          = " + c.Name
	}

	o.printList(" Adding Cluster(s)", lines)

	if err := o.applying(); err != nil {
		return err
	}

	if err := o.storage.AddClusters(ctx, toAdd); err != nil {
		return o.fail(diag.Errorf(diag.KindBackend, "Problem adding clusters: %w", err))
	}

	return o.confirm(ctx)
}

func clusterExists(clusters []models.Cluster, name string) bool {
	for _, c := range clusters {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}

	return false
}

// AddAccounts adds the accounts that do not exist yet with base associations
// on their clusters. Accounts without clusters are added on every cluster.
func (o *Orchestrator) AddAccounts(ctx context.Context, accounts []models.Account) error {
	if err := o.start(DirectiveAddAccount); err != nil {
		return err
	}

	if len(accounts) == 0 {
		return o.precondition("Need name of account to add.")
	}

	known, err := o.storage.Clusters(ctx, nil)
	if err != nil {
		return o.fail(diag.Errorf(diag.KindBackend, "Problem getting clusters from database.  Contact your admin.: %w", err))
	}

	if len(known) == 0 {
		return o.precondition("Can't add accounts, no cluster defined yet.\n Please contact your administrator.")
	}

	existing, err := o.storage.Accounts(ctx, nil)
	if err != nil {
		return o.fail(diag.Errorf(diag.KindBackend, "Problem getting accounts from database.  Contact your admin.: %w", err))
	}

	toAdd := o.resolveAccounts(accounts, known, existing)

	if err := o.validated(); err != nil {
		return err
	}

	if len(toAdd) == 0 {
		fmt.Fprintln(o.out, " Nothing new added.")
		o.metrics.Transaction(o.directive, metrics.OutcomeNoop)

		return o.transition(StateDiscarded)
	}

	o.previewAccounts(toAdd)

	if err := o.applying(); err != nil {
		return err
	}

	if err := o.storage.AddAccounts(ctx, toAdd); err != nil {
		return o.fail(diag.Errorf(diag.KindBackend, "Problem adding accounts: %w", err))
	}

	return o.confirm(ctx)
}

// resolveAccounts drops existing accounts and accounts with a missing parent
// and fills in the cluster lists.
func (o *Orchestrator) resolveAccounts(accounts []models.Account, known []models.Cluster, existing []models.Account) []models.Account {
	var all models.NameList
	for _, c := range known {
		all = append(all, c.Name)
	}

	var present models.NameList
	for _, a := range existing {
		present = append(present, a.Name)
	}

	parents := append(models.NameList{}, present...)
	for _, a := range accounts {
		parents = append(parents, a.Name)
	}

	var toAdd []models.Account

	for _, a := range accounts {
		if present.Contains(a.Name) {
			fmt.Fprintf(o.out, " This account %s already exists.  Not adding.\n", a.Name)

			continue
		}

		if a.Parent != "" && !strings.EqualFold(a.Parent, rootAccount) && !parents.Contains(a.Parent) {
			o.diag.Reportf(diag.KindReference, "The parent account '%s' of account '%s' doesn't exist.", a.Parent, a.Name)

			continue
		}

		var clusters models.NameList

		for _, c := range a.Clusters {
			if !all.Contains(c) {
				o.diag.Reportf(diag.KindReference, "This cluster '%s' doesn't exist.\n        Contact your admin to add it to accounting.", c)

				continue
			}

			clusters = append(clusters, c)
		}

		switch {
		case len(a.Clusters) == 0:
			clusters = append(models.NameList{}, all...)
		case len(clusters) == 0:
			continue
		}

		a.Clusters = clusters
		toAdd = append(toAdd, a)
	}

	return toAdd
}

func (o *Orchestrator) previewAccounts(accounts []models.Account) {
	var b strings.Builder

	b.WriteString(" Adding Account(s)\n")

	for _, a := range accounts {
		parent := a.Parent
		if parent == "" {
			parent = rootAccount
		}

		fmt.Fprintf(&b, "  %s\n", a.Name)
		fmt.Fprintf(&b, "   Description     = %s\n", a.Description)
		fmt.Fprintf(&b, "   Organization    = %s\n", a.Organization)
		fmt.Fprintf(&b, "   Parent          = %s\n", parent)

		for _, c := range a.Clusters {
			fmt.Fprintf(&b, "   %s\n", strings.TrimRight(fmt.Sprintf("A = %-10.10s C = %-10.10s", a.Name, c), " "))
		}
	}

	fmt.Fprint(o.out, b.String())
}
