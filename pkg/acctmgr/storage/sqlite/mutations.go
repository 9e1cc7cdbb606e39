package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage"
)

// Unique keys of the tables.
var (
	clusterKey     = []string{"name"}
	accountKey     = []string{"name"}
	userKey        = []string{"name"}
	associationKey = []string{"usr", "acct", "cluster", "partition"}
	wckeyKey       = []string{"usr", "name", "cluster"}
	coordinatorKey = []string{"usr", "acct"}
)

// rootAccount is the parent of top level accounts.
const rootAccount = "root"

// upsert inserts rows into table, resurrecting soft deleted duplicates.
func upsert[T interface{ TableName() string }](ctx context.Context, tx *sql.Tx, rows []T, key []string) error {
	if len(rows) == 0 {
		return nil
	}

	columns, _ := insertColumns(rows[0])

	stmt, err := tx.PrepareContext(ctx, upsertStatement(rows[0].TableName(), columns, key))
	if err != nil {
		return translateErr(err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, values := insertColumns(row)
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return translateErr(err)
		}
	}

	return nil
}

// AddClusters adds clusters.
func (s *Store) AddClusters(ctx context.Context, clusters []models.Cluster) error {
	tx, err := s.txn(ctx)
	if err != nil {
		return err
	}

	if err := upsert(ctx, tx, clusters, clusterKey); err != nil {
		return fmt.Errorf("failed to add clusters: %w", err)
	}

	return nil
}

// AddAccounts adds accounts and their base associations on the clusters of
// each account.
func (s *Store) AddAccounts(ctx context.Context, accounts []models.Account) error {
	tx, err := s.txn(ctx)
	if err != nil {
		return err
	}

	var bases []models.Association

	for i := range accounts {
		if accounts[i].Parent == "" && !strings.EqualFold(accounts[i].Name, rootAccount) {
			accounts[i].Parent = rootAccount
		}

		for _, cluster := range accounts[i].Clusters {
			bases = append(bases, models.Association{
				Account:       accounts[i].Name,
				Cluster:       cluster,
				ParentAccount: accounts[i].Parent,
			})
		}
	}

	if err := upsert(ctx, tx, accounts, accountKey); err != nil {
		return fmt.Errorf("failed to add accounts: %w", err)
	}

	if err := upsert(ctx, tx, bases, associationKey); err != nil {
		return fmt.Errorf("failed to add account associations: %w", err)
	}

	return nil
}

// AddUsers adds users.
func (s *Store) AddUsers(ctx context.Context, users []models.User) error {
	tx, err := s.txn(ctx)
	if err != nil {
		return err
	}

	if err := upsert(ctx, tx, users, userKey); err != nil {
		return fmt.Errorf("failed to add users: %w", err)
	}

	return nil
}

// AddAssociations adds associations.
func (s *Store) AddAssociations(ctx context.Context, assocs []models.Association) error {
	tx, err := s.txn(ctx)
	if err != nil {
		return err
	}

	if err := upsert(ctx, tx, assocs, associationKey); err != nil {
		return fmt.Errorf("failed to add associations: %w", err)
	}

	return nil
}

// AddWCKeys adds wckeys.
func (s *Store) AddWCKeys(ctx context.Context, wckeys []models.WCKey) error {
	tx, err := s.txn(ctx)
	if err != nil {
		return err
	}

	if err := upsert(ctx, tx, wckeys, wckeyKey); err != nil {
		return fmt.Errorf("failed to add wckeys: %w", err)
	}

	return nil
}

// exec runs a statement built with Query.
func exec(ctx context.Context, tx *sql.Tx, q *Query) error {
	query, params := q.get()
	if _, err := tx.ExecContext(ctx, query, params...); err != nil {
		return translateErr(err)
	}

	return nil
}

// ModifyUsers applies rec to the users matching cond and returns their names.
func (s *Store) ModifyUsers(ctx context.Context, cond *models.UserCondition, rec *models.UserRecord) ([]string, error) {
	users, err := s.Users(ctx, cond)
	if err != nil {
		return nil, err
	}

	if len(users) == 0 || !rec.IsSet() {
		return nil, nil
	}

	if rec.NewName != "" && len(users) > 1 {
		return nil, storage.ErrOneChange
	}

	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}

	names := make(models.NameList, len(users))
	for i, u := range users {
		names[i] = u.Name
	}

	var sets []string

	var params []any

	if rec.AdminLevel != models.AdminNotSet {
		sets = append(sets, "admin_level = ?")
		params = append(params, rec.AdminLevel)
	}

	if rec.DefaultAccount != "" {
		sets = append(sets, "default_acct = ?")
		params = append(params, rec.DefaultAccount)
	}

	if rec.DefaultWCKey != "" {
		sets = append(sets, "default_wckey = ?")
		params = append(params, rec.DefaultWCKey)
	}

	if rec.NewName != "" {
		sets = append(sets, "name = ?")
		params = append(params, rec.NewName)
	}

	q := &Query{}
	q.query("UPDATE " + models.User{}.TableName() + " SET " + strings.Join(sets, ", "))
	q.params = params
	q.in("name", names)

	if err := exec(ctx, tx, q); err != nil {
		return nil, fmt.Errorf("failed to modify users: %w", err)
	}

	if rec.DefaultWCKey != "" {
		q := &Query{}
		q.query("UPDATE " + models.WCKey{}.TableName() + " SET is_def = (name = ?)")
		q.params = []any{rec.DefaultWCKey}
		q.in("usr", names)

		if err := exec(ctx, tx, q); err != nil {
			return nil, fmt.Errorf("failed to update default wckeys: %w", err)
		}
	}

	if rec.NewName != "" {
		for _, table := range []string{
			models.Association{}.TableName(), models.WCKey{}.TableName(), models.Coordinator{}.TableName(),
		} {
			q := &Query{}
			q.query("UPDATE " + table + " SET usr = ?")
			q.params = []any{rec.NewName}
			q.in("usr", names)

			if err := exec(ctx, tx, q); err != nil {
				return nil, fmt.Errorf("failed to rename user in %s: %w", table, err)
			}
		}
	}

	return names, nil
}

// matchingAssociations returns the user associations matching cond.
func (s *Store) matchingAssociations(ctx context.Context, tx *sql.Tx, cond *models.AssociationCondition) ([]models.Association, error) {
	q := selectFrom(models.Association{}.TableName())
	assocFilter(q, cond, true)
	q.query(" ORDER BY cluster, acct, usr, partition")

	return Querier[models.Association](ctx, tx, q, s.logger)
}

// updateAssociations runs the SET clause of q on the given associations.
func updateAssociations(ctx context.Context, tx *sql.Tx, assocs []models.Association, sets []string, params []any) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = ?", models.Association{}.TableName(), strings.Join(sets, ", "),
	))
	if err != nil {
		return translateErr(err)
	}
	defer stmt.Close()

	for _, a := range assocs {
		if _, err := stmt.ExecContext(ctx, append(append([]any{}, params...), a.ID)...); err != nil {
			return translateErr(err)
		}
	}

	return nil
}

func assocLines(assocs []models.Association) []string {
	lines := make([]string, len(assocs))
	for i, a := range assocs {
		lines[i] = a.String()
	}

	return lines
}

// ModifyAssociations applies rec to the user associations matching cond and
// returns them as display lines.
func (s *Store) ModifyAssociations(ctx context.Context, cond *models.AssociationCondition, rec *models.AssociationRecord) ([]string, error) {
	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}

	assocs, err := s.matchingAssociations(ctx, tx, cond)
	if err != nil {
		return nil, fmt.Errorf("failed to query associations: %w", err)
	}

	if len(assocs) == 0 || rec == nil {
		return nil, nil
	}

	var sets []string

	var params []any

	for _, e := range rec.Entries() {
		if e.Value == nil {
			continue
		}

		sets = append(sets, e.Column+" = ?")

		if *e.Value == models.ClearValue {
			params = append(params, nil)
		} else {
			params = append(params, *e.Value)
		}
	}

	switch rec.QOSOp {
	case models.ListSet:
		sets = append(sets, "qos = ?")
		params = append(params, rec.QOS.String())
	case models.ListAdd:
		sets = append(sets, "qos = name_list_edit(qos, ?, ?)")
		params = append(params, listEditAdd, rec.QOS.String())
	case models.ListRemove:
		sets = append(sets, "qos = name_list_edit(qos, ?, ?)")
		params = append(params, listEditRemove, rec.QOS.String())
	case models.ListUnset:
	}

	if rec.DefaultQOS != "" {
		sets = append(sets, "def_qos = ?")

		if rec.DefaultQOS == "-1" {
			params = append(params, "")
		} else {
			params = append(params, rec.DefaultQOS)
		}
	}

	if rec.ResetRawUsage {
		sets = append(sets, "raw_usage = 0")
	}

	if len(sets) == 0 {
		return nil, nil
	}

	if err := updateAssociations(ctx, tx, assocs, sets, params); err != nil {
		return nil, fmt.Errorf("failed to modify associations: %w", err)
	}

	return assocLines(assocs), nil
}

// ResetRawUsage sets the raw usage of the user associations matching cond to zero.
func (s *Store) ResetRawUsage(ctx context.Context, cond *models.AssociationCondition) ([]string, error) {
	return s.ModifyAssociations(ctx, cond, &models.AssociationRecord{ResetRawUsage: true})
}

// softDelete marks rows of table matching q conditions deleted.
func softDelete(ctx context.Context, tx *sql.Tx, table string, build func(q *Query)) error {
	q := &Query{}
	q.query("UPDATE " + table + " SET deleted = 1")
	q.cond("deleted = 0")
	build(q)

	return exec(ctx, tx, q)
}

// RemoveUsers deletes the users matching cond together with their
// associations, wckeys and coordinator grants.
func (s *Store) RemoveUsers(ctx context.Context, cond *models.UserCondition) ([]string, error) {
	users, err := s.Users(ctx, cond)
	if err != nil {
		return nil, err
	}

	if len(users) == 0 {
		return nil, nil
	}

	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}

	names := make(models.NameList, len(users))
	for i, u := range users {
		names[i] = u.Name
	}

	for _, table := range []string{
		models.Association{}.TableName(), models.WCKey{}.TableName(), models.Coordinator{}.TableName(),
	} {
		if err := softDelete(ctx, tx, table, func(q *Query) { q.in("usr", names) }); err != nil {
			return nil, fmt.Errorf("failed to remove user rows from %s: %w", table, err)
		}
	}

	if err := softDelete(ctx, tx, models.User{}.TableName(), func(q *Query) { q.in("name", names) }); err != nil {
		return nil, fmt.Errorf("failed to remove users: %w", err)
	}

	return names, nil
}

// RemoveAssociations deletes the user associations matching cond.
func (s *Store) RemoveAssociations(ctx context.Context, cond *models.AssociationCondition) ([]string, error) {
	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}

	assocs, err := s.matchingAssociations(ctx, tx, cond)
	if err != nil {
		return nil, fmt.Errorf("failed to query associations: %w", err)
	}

	if len(assocs) == 0 {
		return nil, nil
	}

	if err := updateAssociations(ctx, tx, assocs, []string{"deleted = 1"}, nil); err != nil {
		return nil, fmt.Errorf("failed to remove associations: %w", err)
	}

	return assocLines(assocs), nil
}

// AddCoordinators grants coordinator rights over accounts to the users of cond.
func (s *Store) AddCoordinators(ctx context.Context, accounts models.NameList, cond *models.UserCondition) error {
	tx, err := s.txn(ctx)
	if err != nil {
		return err
	}

	var coords []models.Coordinator

	for _, user := range cond.Users() {
		for _, acct := range accounts {
			coords = append(coords, models.Coordinator{User: user, Account: acct})
		}
	}

	if err := upsert(ctx, tx, coords, coordinatorKey); err != nil {
		return fmt.Errorf("failed to add coordinators: %w", err)
	}

	return nil
}

// RemoveCoordinators revokes the grants of the users of cond over accounts.
// Empty lists match everything.
func (s *Store) RemoveCoordinators(ctx context.Context, accounts models.NameList, cond *models.UserCondition) ([]string, error) {
	coordCond := models.NewUserCondition()
	coordCond.Assoc.Users = cond.Users()
	coordCond.Assoc.Accounts = accounts

	coords, err := s.Coordinators(ctx, coordCond)
	if err != nil {
		return nil, err
	}

	if len(coords) == 0 {
		return nil, nil
	}

	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]string, len(coords))

	stmt, err := tx.PrepareContext(ctx, "UPDATE "+models.Coordinator{}.TableName()+" SET deleted = 1 WHERE id = ?")
	if err != nil {
		return nil, translateErr(err)
	}
	defer stmt.Close()

	for i, c := range coords {
		if _, err := stmt.ExecContext(ctx, c.ID); err != nil {
			return nil, fmt.Errorf("failed to remove coordinators: %w", translateErr(err))
		}

		lines[i] = fmt.Sprintf("U = %-9s A = %s", c.User, c.Account)
	}

	return lines, nil
}
