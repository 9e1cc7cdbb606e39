package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
)

// selectFrom starts a SELECT of all columns of table.
func selectFrom(table string) *Query {
	q := &Query{}
	q.query("SELECT * FROM " + table)

	return q
}

// assocFilter adds the conditions of an association condition. Only user
// associations are selected when userOnly is set.
func assocFilter(q *Query, cond *models.AssociationCondition, userOnly bool) {
	if cond == nil {
		cond = &models.AssociationCondition{}
	}

	q.notDeleted(cond.WithDeleted)
	q.in("usr", cond.Users)
	q.in("acct", cond.Accounts)
	q.in("cluster", cond.Clusters)
	q.in("partition", cond.Partitions)
	q.in("parent_acct", cond.Parents)
	q.anyOf("qos", cond.QOS)

	if userOnly {
		q.cond("usr != ''")
	}
}

// hasAssocFilter returns true when the condition restricts associations
// beyond the user list.
func hasAssocFilter(cond *models.AssociationCondition) bool {
	return cond != nil && (len(cond.Accounts) > 0 || len(cond.Clusters) > 0 ||
		len(cond.Partitions) > 0 || len(cond.Parents) > 0 || len(cond.QOS) > 0)
}

// usersQuery returns the query selecting users of cond.
func usersQuery(cond *models.UserCondition) *Query {
	if cond == nil {
		cond = models.NewUserCondition()
	}

	q := selectFrom(models.User{}.TableName())
	q.notDeleted(cond.WithDeleted)
	q.in("name", cond.Users())
	q.in("default_acct", cond.DefaultAccounts)
	q.in("default_wckey", cond.DefaultWCKeys)

	if cond.AdminLevel != models.AdminNotSet {
		q.cond("admin_level = ?", cond.AdminLevel)
	}

	// Users having an association matching the association filters
	if hasAssocFilter(cond.Assoc) {
		sub := &Query{}
		sub.query("SELECT usr FROM " + models.Association{}.TableName())
		assocFilter(sub, cond.Assoc, true)

		subQuery, subParams := sub.get()
		q.cond("name IN ("+subQuery+")", subParams...)
	}

	q.query(" ORDER BY name")

	return q
}

// Users returns users matching cond. Associations and coordinator grants are
// attached when the condition asks for them.
func (s *Store) Users(ctx context.Context, cond *models.UserCondition) ([]models.User, error) {
	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}

	users, err := Querier[models.User](ctx, tx, usersQuery(cond), s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	if cond == nil || len(users) == 0 || (!cond.WithAssocs && !cond.WithCoords) {
		return users, nil
	}

	names := make(models.NameList, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}

	if cond.WithAssocs {
		assocCond := *cond.Assoc
		assocCond.Users = names
		assocCond.WithDeleted = cond.WithDeleted

		q := selectFrom(models.Association{}.TableName())
		assocFilter(q, &assocCond, true)
		q.query(" ORDER BY usr, cluster, acct, partition")

		assocs, err := Querier[models.Association](ctx, tx, q, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to query associations: %w", err)
		}

		for i := range users {
			for _, a := range assocs {
				if strings.EqualFold(a.User, users[i].Name) {
					users[i].Associations = append(users[i].Associations, a)
				}
			}
		}
	}

	if cond.WithCoords {
		coordCond := models.NewUserCondition()
		coordCond.Assoc.Users = names

		coords, err := s.Coordinators(ctx, coordCond)
		if err != nil {
			return nil, err
		}

		for i := range users {
			for _, c := range coords {
				if strings.EqualFold(c.User, users[i].Name) {
					users[i].Coordinators = append(users[i].Coordinators, c.Account)
				}
			}
		}
	}

	return users, nil
}

// Accounts returns accounts matching cond.
func (s *Store) Accounts(ctx context.Context, cond *models.AccountCondition) ([]models.Account, error) {
	if cond == nil {
		cond = &models.AccountCondition{}
	}

	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}

	q := selectFrom(models.Account{}.TableName())
	q.notDeleted(cond.WithDeleted)
	q.in("name", cond.Names)
	q.query(" ORDER BY name")

	accounts, err := Querier[models.Account](ctx, tx, q, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}

	return accounts, nil
}

// Clusters returns clusters matching cond.
func (s *Store) Clusters(ctx context.Context, cond *models.ClusterCondition) ([]models.Cluster, error) {
	if cond == nil {
		cond = &models.ClusterCondition{}
	}

	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}

	q := selectFrom(models.Cluster{}.TableName())
	q.notDeleted(cond.WithDeleted)
	q.in("name", cond.Names)
	q.query(" ORDER BY name")

	clusters, err := Querier[models.Cluster](ctx, tx, q, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}

	return clusters, nil
}

// Associations returns associations, including account base associations,
// matching cond.
func (s *Store) Associations(ctx context.Context, cond *models.AssociationCondition) ([]models.Association, error) {
	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}

	q := selectFrom(models.Association{}.TableName())
	assocFilter(q, cond, false)
	q.query(" ORDER BY cluster, acct, usr, partition")

	assocs, err := Querier[models.Association](ctx, tx, q, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to query associations: %w", err)
	}

	return assocs, nil
}

// WCKeys returns wckeys matching cond.
func (s *Store) WCKeys(ctx context.Context, cond *models.WCKeyCondition) ([]models.WCKey, error) {
	if cond == nil {
		cond = &models.WCKeyCondition{}
	}

	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}

	q := selectFrom(models.WCKey{}.TableName())
	q.notDeleted(cond.WithDeleted)
	q.in("usr", cond.Users)
	q.in("name", cond.Names)
	q.in("cluster", cond.Clusters)
	q.query(" ORDER BY usr, cluster, name")

	wckeys, err := Querier[models.WCKey](ctx, tx, q, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to query wckeys: %w", err)
	}

	return wckeys, nil
}

// Coordinators returns the coordinator grants of the users of cond. The
// association account list of cond restricts the accounts.
func (s *Store) Coordinators(ctx context.Context, cond *models.UserCondition) ([]models.Coordinator, error) {
	if cond == nil {
		cond = models.NewUserCondition()
	}

	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}

	q := selectFrom(models.Coordinator{}.TableName())
	q.notDeleted(cond.WithDeleted)
	q.in("usr", cond.Users())

	if cond.Assoc != nil {
		q.in("acct", cond.Assoc.Accounts)
	}

	q.query(" ORDER BY usr, acct")

	coords, err := Querier[models.Coordinator](ctx, tx, q, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to query coordinators: %w", err)
	}

	return coords, nil
}
