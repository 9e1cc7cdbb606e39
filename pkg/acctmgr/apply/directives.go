package apply

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/builder"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/coord"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/metrics"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/provision"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage"
)

// Provision plans req with engine, stores the drafted records and asks to
// commit them.
func (o *Orchestrator) Provision(ctx context.Context, engine *provision.Engine, req provision.Request) error {
	if err := o.start(DirectiveAddUser); err != nil {
		return err
	}

	plan, err := engine.Plan(ctx, req)
	if err != nil {
		return o.fail(err)
	}

	if err := o.validated(); err != nil {
		return err
	}

	if plan.Empty() {
		fmt.Fprintln(o.out, " Nothing new added.")
		o.metrics.Transaction(o.directive, metrics.OutcomeNoop)

		return o.transition(StateDiscarded)
	}

	plan.Preview(o.out)

	o.metrics.Drafted("user", len(plan.Users))
	o.metrics.Drafted("association", len(plan.Associations))
	o.metrics.Drafted("wckey", len(plan.WCKeys))

	if err := o.applying(); err != nil {
		return err
	}

	if len(plan.Users) > 0 {
		if err := o.storage.AddUsers(ctx, plan.Users); err != nil {
			return o.fail(diag.Errorf(diag.KindBackend, "Problem adding users: %w", err))
		}
	}

	if len(plan.Associations) > 0 {
		if err := o.storage.AddAssociations(ctx, plan.Associations); err != nil {
			return o.fail(diag.Errorf(diag.KindBackend, "Problem adding user associations: %w", err))
		}
	}

	if len(plan.WCKeys) > 0 {
		if err := o.storage.AddWCKeys(ctx, plan.WCKeys); err != nil {
			return o.fail(diag.Errorf(diag.KindBackend, "Problem adding wckeys: %w", err))
		}
	}

	return o.confirm(ctx)
}

// ModifyUsers applies the user and association changes of req.
func (o *Orchestrator) ModifyUsers(ctx context.Context, req *builder.ModifyRequest) error {
	if err := o.start(DirectiveModifyUser); err != nil {
		return err
	}

	cond, assoc := req.Cond, req.Assoc

	if req.RecScope == models.ScopeNone {
		return o.precondition("You didn't give me anything to set")
	}

	if assoc.ResetRawUsage && len(cond.Assoc.Accounts) == 0 {
		return o.precondition("An account must be specified")
	}

	if err := o.validated(); err != nil {
		return err
	}

	if req.CondScope == models.ScopeNone {
		ok, err := o.ask(ctx, "You didn't set any conditions with 'WHERE'.\nAre you sure you want to continue?")
		if err != nil {
			return o.fail(err)
		}

		if !ok {
			return o.abort()
		}
	}

	if err := o.applying(); err != nil {
		return err
	}

	var modified bool

	if req.RecScope.Has(models.ScopeUser) {
		var err error

		modified, err = o.modifyUserRecords(ctx, req)
		if err != nil {
			return o.fail(err)
		}
	}

	if req.RecScope.Has(models.ScopeAssoc) {
		o.notifier.begin()

		changed, err := o.modifyAssociations(ctx, req)
		if err != nil {
			return o.fail(err)
		}

		modified = modified || changed
	}

	if !modified {
		return o.nothing(ctx)
	}

	return o.confirm(ctx)
}

// modifyUserRecords runs the user scope of a modify directive. Users found
// without an association with the new default account after the change have
// their previous record restored and are not reported as modified.
func (o *Orchestrator) modifyUserRecords(ctx context.Context, req *builder.ModifyRequest) (bool, error) {
	cond, user := req.Cond, req.User

	if req.CondScope == models.ScopeAssoc {
		o.diag.Reportf(diag.KindPrecondition, "There was a problem with your 'where' options.")

		return false, nil
	}

	if len(cond.Assoc.Accounts) > 0 {
		ok, err := o.ask(ctx, " You specified Accounts in your request.  Did you mean DefaultAccounts?\n")
		if err != nil {
			return false, err
		}

		o.notifier.begin()

		if ok {
			for _, acct := range cond.Assoc.Accounts {
				cond.DefaultAccounts.Add(acct)
			}

			cond.Assoc.Accounts = nil
		}
	}

	userCond := cond

	var accepted []models.User

	if user.DefaultAccount != "" {
		var err error

		userCond, accepted, err = o.checkDefaultAccount(ctx, cond, user.DefaultAccount)
		if err != nil {
			return false, err
		}

		if len(accepted) == 0 {
			return false, nil
		}
	}

	names, err := o.storage.ModifyUsers(ctx, userCond, user)

	switch {
	case errors.Is(err, storage.ErrOneChange):
		o.diag.Reportf(diag.KindPrecondition, "Error with request: %s\n If you are changing a users name you can only specify 1 user at a time.", err)

		return false, nil
	case err != nil:
		return false, diag.Errorf(diag.KindBackend, "Error with request: %w", err)
	case len(names) == 0:
		o.println(" Nothing modified")

		return false, nil
	}

	if user.DefaultAccount != "" {
		var rejected []models.User

		names, rejected, err = o.recheckDefaultAccount(ctx, names, accepted, user)
		if err != nil {
			return false, err
		}

		if err := o.restoreUsers(ctx, rejected, user); err != nil {
			return false, err
		}
	}

	if len(names) == 0 {
		o.println(" Nothing modified")

		return false, nil
	}

	o.printList(" Modified users...", names)

	return true, nil
}

// checkDefaultAccount splits the users matching cond by whether they have an
// association with account. Rejected users are reported. The returned
// condition selects the accepted users only.
func (o *Orchestrator) checkDefaultAccount(
	ctx context.Context,
	cond *models.UserCondition,
	account string,
) (*models.UserCondition, []models.User, error) {
	users, err := o.storage.Users(ctx, cond)
	if err != nil {
		return nil, nil, diag.Errorf(diag.KindBackend, "Problem getting users from database.  Contact your admin.: %w", err)
	}

	var (
		accepted []models.User
		names    models.NameList
		rejected []string
	)

	for _, u := range users {
		ok, err := o.hasAssociation(ctx, u.Name, account)
		if err != nil {
			return nil, nil, err
		}

		if ok {
			accepted = append(accepted, u)
			names = append(names, u.Name)
		} else {
			rejected = append(rejected, u.Name)
		}
	}

	o.reportRejected(account, rejected)

	narrowed := *cond
	assocCond := *cond.Assoc
	assocCond.Users = names
	narrowed.Assoc = &assocCond

	return &narrowed, accepted, nil
}

// recheckDefaultAccount checks the modified users, under their new name
// when renamed, against the new default account. It returns the names that
// passed and the previous records of the users that did not.
func (o *Orchestrator) recheckDefaultAccount(
	ctx context.Context,
	names []string,
	accepted []models.User,
	user *models.UserRecord,
) ([]string, []models.User, error) {
	var (
		kept     []string
		rejected []models.User
		current  []string
	)

	for _, name := range names {
		idx := slices.IndexFunc(accepted, func(u models.User) bool { return strings.EqualFold(u.Name, name) })

		renamed := name
		if user.NewName != "" {
			renamed = user.NewName
		}

		ok, err := o.hasAssociation(ctx, renamed, user.DefaultAccount)
		if err != nil {
			return nil, nil, err
		}

		switch {
		case ok && idx >= 0:
			kept = append(kept, name)
		case idx >= 0:
			rejected = append(rejected, accepted[idx])
			current = append(current, renamed)
		default:
			current = append(current, renamed)
		}
	}

	o.reportRejected(user.DefaultAccount, current)

	return kept, rejected, nil
}

// restoreUsers puts back the previous record of users whose change was
// rejected after it was applied. The other changes of the transaction are
// kept.
func (o *Orchestrator) restoreUsers(ctx context.Context, users []models.User, applied *models.UserRecord) error {
	for _, u := range users {
		current := u.Name
		if applied.NewName != "" {
			current = applied.NewName
		}

		cond := models.NewUserCondition()
		cond.Assoc.Users = models.NameList{current}

		rec := &models.UserRecord{
			AdminLevel:     u.AdminLevel,
			DefaultAccount: u.DefaultAccount,
			DefaultWCKey:   u.DefaultWCKey,
		}

		if current != u.Name {
			rec.NewName = u.Name
		}

		if _, err := o.storage.ModifyUsers(ctx, cond, rec); err != nil {
			return diag.Errorf(diag.KindBackend, "Problem restoring user %s: %w", u.Name, err)
		}

		o.logger.Warn("Restored user not associated with new default account",
			"user", u.Name, "default_account", applied.DefaultAccount)
	}

	return nil
}

func (o *Orchestrator) hasAssociation(ctx context.Context, user, account string) (bool, error) {
	assocs, err := o.storage.Associations(ctx, &models.AssociationCondition{
		Users:    models.NameList{user},
		Accounts: models.NameList{account},
	})
	if err != nil {
		return false, diag.Errorf(diag.KindBackend, "Problem getting associations from database.  Contact your admin.: %w", err)
	}

	return len(assocs) > 0, nil
}

func (o *Orchestrator) reportRejected(account string, names []string) {
	if len(names) == 0 {
		return
	}

	o.diag.Reportf(diag.KindReconciliation,
		"Can't modify because these users aren't associated with new default account '%s'...\n  %s",
		account, strings.Join(names, "\n  "),
	)
}

// modifyAssociations runs the association scope of a modify directive.
func (o *Orchestrator) modifyAssociations(ctx context.Context, req *builder.ModifyRequest) (bool, error) {
	cond, assoc := req.Cond, req.Assoc

	if req.CondScope == models.ScopeUser && len(cond.Users()) == 0 {
		o.diag.Reportf(diag.KindPrecondition, "There was a problem with your 'where' options.")

		return false, nil
	}

	var (
		lines []string
		err   error
	)

	if onlyRawUsage(assoc) {
		lines, err = o.storage.ResetRawUsage(ctx, cond.Assoc)
	} else {
		lines, err = o.storage.ModifyAssociations(ctx, cond.Assoc, assoc)
	}

	if err != nil {
		return false, diag.Errorf(diag.KindBackend, "Error with request: %w", err)
	}

	if len(lines) == 0 {
		o.println(" Nothing modified")

		return false, nil
	}

	o.printList(" Modified account associations...", lines)

	return true, nil
}

func onlyRawUsage(rec *models.AssociationRecord) bool {
	if !rec.ResetRawUsage {
		return false
	}

	r := *rec
	r.ResetRawUsage = false

	return !r.IsSet()
}

// RemoveUsers deletes the users matching cond, or only their associations
// when the condition has association scope.
func (o *Orchestrator) RemoveUsers(ctx context.Context, cond *models.UserCondition, scope models.Scope) error {
	if err := o.start(DirectiveDeleteUser); err != nil {
		return err
	}

	if scope == models.ScopeNone {
		return o.precondition("No conditions given to remove, not executing.")
	}

	if err := o.validated(); err != nil {
		return err
	}

	if err := o.applying(); err != nil {
		return err
	}

	var (
		lines  []string
		header string
		err    error
	)

	if scope == models.ScopeUser {
		header = " Deleting users..."
		lines, err = o.storage.RemoveUsers(ctx, cond)
	} else {
		header = " Deleting user associations..."
		lines, err = o.storage.RemoveAssociations(ctx, cond.Assoc)
	}

	if err != nil {
		return o.fail(diag.Errorf(diag.KindBackend, "Error with request: %w", err))
	}

	if len(lines) == 0 {
		o.println(" Nothing deleted")

		return o.nothing(ctx)
	}

	o.printList(header, lines)

	return o.confirm(ctx)
}

// AddCoordinators grants the users of cond coordinator rights over the
// accounts of cond.
func (o *Orchestrator) AddCoordinators(ctx context.Context, cond *models.UserCondition, scope models.Scope) error {
	if err := o.start(DirectiveAddCoordinator); err != nil {
		return err
	}

	if scope == models.ScopeNone {
		return o.precondition("You need to specify conditions to add the coordinator.")
	}

	if err := coord.NewValidator(o.storage, o.diag, o.logger).Check(ctx, cond, true); err != nil {
		return o.fail(err)
	}

	if err := o.validated(); err != nil {
		return err
	}

	o.printList(" Adding Coordinator User(s)", cond.Users())
	o.printList(" To Account(s) and all sub-accounts", cond.Assoc.Accounts)

	if err := o.applying(); err != nil {
		return err
	}

	if err := o.storage.AddCoordinators(ctx, cond.Assoc.Accounts, cond); err != nil {
		return o.fail(diag.Errorf(diag.KindBackend, "Problem adding coordinator: %w", err))
	}

	return o.confirm(ctx)
}

// RemoveCoordinators revokes coordinator grants. Without users every
// coordinator of the accounts is removed, without accounts the users lose
// every grant.
func (o *Orchestrator) RemoveCoordinators(ctx context.Context, cond *models.UserCondition) error {
	if err := o.start(DirectiveDeleteCoordinator); err != nil {
		return err
	}

	users, accounts := cond.Users(), cond.Assoc.Accounts

	if len(users) == 0 && len(accounts) == 0 {
		return o.precondition("You need to specify a user list or account list here.")
	}

	if err := coord.NewValidator(o.storage, o.diag, o.logger).Check(ctx, cond, false); err != nil {
		return o.fail(err)
	}

	if err := o.validated(); err != nil {
		return err
	}

	switch {
	case len(users) > 0:
		o.printList(" Removing Coordinators with user name", users)

		if len(accounts) > 0 {
			o.printList(" From Account(s)", accounts)
		} else {
			fmt.Fprintln(o.out, " From all accounts")
		}
	default:
		o.printList(" Removing all users from Accounts", accounts)
	}

	if err := o.applying(); err != nil {
		return err
	}

	lines, err := o.storage.RemoveCoordinators(ctx, accounts, cond)
	if err != nil {
		return o.fail(diag.Errorf(diag.KindBackend, "Problem removing coordinator: %w", err))
	}

	if len(lines) == 0 {
		o.println(" Nothing removed")

		return o.nothing(ctx)
	}

	o.printList(" Removed Coordinators (sub accounts not listed)...", lines)

	return o.confirm(ctx)
}
