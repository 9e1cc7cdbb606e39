// Package coord validates coordinator grant and revoke requests against the
// accounting storage.
package coord

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage"
)

// ErrUnresolved is returned when requested users or accounts do not exist.
var ErrUnresolved = errors.New("unresolved users or accounts")

// Validator checks that the users and accounts of a coordinator request
// exist.
type Validator struct {
	storage storage.Storage
	diag    *diag.Diagnostics
	logger  *slog.Logger
}

// NewValidator returns a new Validator.
func NewValidator(s storage.Storage, d *diag.Diagnostics, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Validator{storage: s, diag: d, logger: logger}
}

// Check reports every user and account of cond missing from storage. With
// requireLists both lists must be given.
func (v *Validator) Check(ctx context.Context, cond *models.UserCondition, requireLists bool) error {
	if cond == nil || cond.Assoc == nil {
		return diag.Errorf(diag.KindPrecondition, "You need to specify the user condition here.")
	}

	users, accounts := cond.Users(), cond.Assoc.Accounts

	if requireLists && len(users) == 0 {
		return diag.Errorf(diag.KindPrecondition, "You need to specify a user list here.")
	}

	if requireLists && len(accounts) == 0 {
		return diag.Errorf(diag.KindPrecondition, "You need to specify a account list here.")
	}

	var missing int

	if len(accounts) > 0 {
		found, err := v.storage.Accounts(ctx, &models.AccountCondition{Names: accounts})
		if err != nil {
			return diag.Errorf(diag.KindBackend, "Problem getting accounts from database.  Contact your admin.: %w", err)
		}

		for _, name := range accounts {
			if !containsName(found, name, func(a models.Account) string { return a.Name }) {
				v.diag.Reportf(diag.KindReference, "You specified a non-existent account '%s'.", name)

				missing++
			}
		}
	}

	if len(users) > 0 {
		userCond := models.NewUserCondition()
		userCond.Assoc.Users = users

		found, err := v.storage.Users(ctx, userCond)
		if err != nil {
			return diag.Errorf(diag.KindBackend, "Problem getting users from database.  Contact your admin.: %w", err)
		}

		for _, name := range users {
			if !containsName(found, name, func(u models.User) string { return u.Name }) {
				v.diag.Reportf(diag.KindReference, "You specified a non-existent user '%s'.", name)

				missing++
			}
		}
	}

	if missing > 0 {
		v.logger.Debug("Coordinator request has unresolved names", "count", missing)

		return ErrUnresolved
	}

	return nil
}

func containsName[T any](items []T, name string, nameOf func(T) string) bool {
	for _, item := range items {
		if strings.EqualFold(nameOf(item), name) {
			return true
		}
	}

	return false
}
