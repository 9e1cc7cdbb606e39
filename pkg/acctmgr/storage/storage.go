// Package storage defines the contract between the accounting front-end and
// the accounting database backends.
package storage

import (
	"context"
	"errors"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
)

// Backend errors.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrOneChange        = errors.New("only one user can be renamed at a time")
	ErrNotFound         = errors.New("not found")
	ErrClosed           = errors.New("storage is closed")
)

// Storage is the accounting database. Queries return an empty result and a
// nil error when nothing matches. Mutations return the affected objects as
// display lines. Mutations are only persisted by Commit(true).
type Storage interface {
	Users(ctx context.Context, cond *models.UserCondition) ([]models.User, error)
	Accounts(ctx context.Context, cond *models.AccountCondition) ([]models.Account, error)
	Clusters(ctx context.Context, cond *models.ClusterCondition) ([]models.Cluster, error)
	Associations(ctx context.Context, cond *models.AssociationCondition) ([]models.Association, error)
	WCKeys(ctx context.Context, cond *models.WCKeyCondition) ([]models.WCKey, error)
	Coordinators(ctx context.Context, cond *models.UserCondition) ([]models.Coordinator, error)

	AddUsers(ctx context.Context, users []models.User) error
	AddAssociations(ctx context.Context, assocs []models.Association) error
	AddWCKeys(ctx context.Context, wckeys []models.WCKey) error
	AddClusters(ctx context.Context, clusters []models.Cluster) error
	AddAccounts(ctx context.Context, accounts []models.Account) error

	ModifyUsers(ctx context.Context, cond *models.UserCondition, rec *models.UserRecord) ([]string, error)
	ModifyAssociations(ctx context.Context, cond *models.AssociationCondition, rec *models.AssociationRecord) ([]string, error)
	ResetRawUsage(ctx context.Context, cond *models.AssociationCondition) ([]string, error)
	RemoveUsers(ctx context.Context, cond *models.UserCondition) ([]string, error)
	RemoveAssociations(ctx context.Context, cond *models.AssociationCondition) ([]string, error)
	AddCoordinators(ctx context.Context, accounts models.NameList, cond *models.UserCondition) error
	RemoveCoordinators(ctx context.Context, accounts models.NameList, cond *models.UserCondition) ([]string, error)

	Commit(ctx context.Context, persist bool) error
	Close() error
}
