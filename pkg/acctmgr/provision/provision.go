// Package provision computes the users, associations and wckeys missing for
// a requested set of users, accounts, clusters and partitions.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ceems-dev/acctmgr/internal/common"
	"github.com/ceems-dev/acctmgr/internal/identity"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/prompt"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage"
	"github.com/jellydator/ttlcache/v3"
)

// WCKeyLookupPolicy tells how a failure to fetch existing wckeys is handled.
type WCKeyLookupPolicy string

// WCKey lookup policies.
const (
	// Log the failure and continue as if no wckey existed.
	WCKeyTolerate WCKeyLookupPolicy = "tolerate"
	// Tolerate only permission errors.
	WCKeyPermission WCKeyLookupPolicy = "permission"
	// Any failure aborts provisioning.
	WCKeyStrict WCKeyLookupPolicy = "strict"
)

// WCKeyLookupPolicies returns the valid policies.
func WCKeyLookupPolicies() []string {
	return []string{string(WCKeyTolerate), string(WCKeyPermission), string(WCKeyStrict)}
}

// ParseWCKeyLookupPolicy returns the policy named s. Empty string is the
// tolerate policy.
func ParseWCKeyLookupPolicy(s string) (WCKeyLookupPolicy, error) {
	switch p := WCKeyLookupPolicy(strings.ToLower(s)); p {
	case "":
		return WCKeyTolerate, nil
	case WCKeyTolerate, WCKeyPermission, WCKeyStrict:
		return p, nil
	default:
		return "", fmt.Errorf("unknown wckey lookup policy %q, valid policies are %s", s, strings.Join(WCKeyLookupPolicies(), ", "))
	}
}

// Request is what an add user directive asks for.
type Request struct {
	Users          models.NameList
	Accounts       models.NameList
	Clusters       models.NameList
	Partitions     models.NameList
	WCKeys         models.NameList
	DefaultAccount string
	DefaultWCKey   string
	AdminLevel     models.AdminLevel
	Template       models.Limits
}

// Config of the Engine.
type Config struct {
	Storage     storage.Storage
	Prompter    prompt.Prompter
	Identity    identity.Resolver
	Diag        *diag.Diagnostics
	Logger      *slog.Logger
	TrackWCKey  bool
	WCKeyPolicy WCKeyLookupPolicy
}

// Engine plans the records to create for add user directives.
type Engine struct {
	storage     storage.Storage
	prompter    prompt.Prompter
	identity    identity.Resolver
	diag        *diag.Diagnostics
	logger      *slog.Logger
	trackWCKey  bool
	wckeyPolicy WCKeyLookupPolicy
}

// New returns a new Engine.
func New(c Config) *Engine {
	e := &Engine{
		storage:     c.Storage,
		prompter:    c.Prompter,
		identity:    c.Identity,
		diag:        c.Diag,
		logger:      c.Logger,
		trackWCKey:  c.TrackWCKey,
		wckeyPolicy: c.WCKeyPolicy,
	}

	if e.prompter == nil {
		e.prompter = prompt.Immediate{}
	}

	if e.identity == nil {
		e.identity = identity.System{}
	}

	if e.diag == nil {
		e.diag = diag.New(nil, nil)
	}

	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}

	if e.wckeyPolicy == "" {
		e.wckeyPolicy = WCKeyTolerate
	}

	return e
}

// snapshot is the existing state fetched for one Plan call.
type snapshot struct {
	users    []models.User
	accounts []models.Account
	clusters models.NameList
	assocs   []models.Association
	wckeys   []models.WCKey
}

func (s *snapshot) hasUser(name string) bool {
	for _, u := range s.users {
		if strings.EqualFold(u.Name, name) {
			return true
		}
	}

	return false
}

func (s *snapshot) hasAccount(name string) bool {
	for _, a := range s.accounts {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}

	return false
}

func (s *snapshot) hasAssoc(key models.AssociationKey) bool {
	for _, a := range s.assocs {
		if a.Key().Matches(key) {
			return true
		}
	}

	return false
}

func (s *snapshot) hasWCKey(user, name, cluster string) bool {
	for _, w := range s.wckeys {
		if w.Matches(user, name, cluster) {
			return true
		}
	}

	return false
}

// Plan resolves the existing state of req and returns the records to create.
// Errors that only exclude some records are reported to the diagnostics,
// errors aborting the whole request are returned.
func (e *Engine) Plan(ctx context.Context, req Request) (*Plan, error) {
	defer common.TimeTrack(time.Now(), "Provisioning plan", e.logger)

	if len(req.Users) == 0 {
		return nil, diag.Errorf(diag.KindPrecondition, "Need name of user to add.")
	}

	snap := &snapshot{}

	// Existing users are looked up by name only
	userCond := models.NewUserCondition()
	userCond.Assoc.Users = req.Users

	var err error
	if snap.users, err = e.storage.Users(ctx, userCond); err != nil {
		return nil, diag.Errorf(diag.KindBackend, "Problem getting users from database.  Contact your admin.: %w", err)
	}

	if snap.clusters, err = e.resolveClusters(ctx, req.Clusters); err != nil {
		return nil, err
	}

	defaultAccount := req.DefaultAccount

	if len(req.Accounts) == 0 {
		if len(req.WCKeys) == 0 {
			return nil, diag.Errorf(diag.KindPrecondition, "Need name of account to add user to.")
		}
	} else {
		if snap.accounts, err = e.storage.Accounts(ctx, &models.AccountCondition{Names: req.Accounts}); err != nil {
			return nil, diag.Errorf(diag.KindBackend, "Problem getting accounts from database.  Contact your admin.: %w", err)
		}

		if defaultAccount == "" {
			defaultAccount = req.Accounts[0]
		}

		snap.assocs, err = e.storage.Associations(ctx, &models.AssociationCondition{
			Accounts: req.Accounts,
			Clusters: snap.clusters,
		})
		if err != nil {
			return nil, diag.Errorf(diag.KindBackend, "Problem getting associations from database.  Contact your admin.: %w", err)
		}
	}

	trackWCKey := e.trackWCKey || req.DefaultWCKey != ""

	defaultWCKey := req.DefaultWCKey

	if trackWCKey {
		if defaultWCKey == "" && len(req.WCKeys) > 0 {
			defaultWCKey = req.WCKeys[0]
		}

		if snap.wckeys, err = e.lookupWCKeys(ctx, req.Users, snap.clusters); err != nil {
			return nil, err
		}
	}

	plan := &Plan{
		DefaultAccount: defaultAccount,
		DefaultWCKey:   defaultWCKey,
		AdminLevel:     req.AdminLevel,
		Template:       req.Template.Clone(),
	}

	validator := newRefCache(snap, e.diag)
	defer validator.close()

	firstNewUser := true

	for _, name := range req.Users {
		if strings.TrimSpace(name) == "" {
			e.diag.Reportf(diag.KindPrecondition, "No blank names are allowed when adding.")

			continue
		}

		var owner *models.User

		if !snap.hasUser(name) {
			if defaultAccount == "" {
				return nil, diag.Errorf(diag.KindPrecondition, "Need a default account for these users to add.")
			}

			if firstNewUser {
				if !snap.hasAccount(defaultAccount) {
					return nil, diag.Errorf(
						diag.KindReference,
						"This account '%s' doesn't exist.\n        Contact your admin to add this account.",
						defaultAccount,
					)
				}

				firstNewUser = false
			}

			ok, err := e.confirmIdentity(ctx, name)
			if err != nil {
				return nil, err
			}

			if !ok {
				e.diag.Reportf(diag.KindPrecondition, "User '%s' not added, no uid found.", name)

				continue
			}

			level := req.AdminLevel
			if level == models.AdminNotSet {
				level = models.AdminNone
			}

			plan.Users = append(plan.Users, models.User{
				Name:           name,
				AdminLevel:     level,
				DefaultAccount: defaultAccount,
				DefaultWCKey:   defaultWCKey,
			})
			owner = &plan.Users[len(plan.Users)-1]
		}

		for _, account := range req.Accounts {
			if !validator.account(account) {
				continue
			}

			for _, cluster := range snap.clusters {
				if !validator.base(account, cluster) {
					continue
				}

				for _, draft := range draftAssociations(snap, name, account, cluster, req.Partitions, req.Template) {
					plan.Associations = append(plan.Associations, draft)

					if owner != nil {
						owner.Associations = append(owner.Associations, draft)
					}
				}
			}
		}

		if !trackWCKey {
			continue
		}

		for _, wckey := range req.WCKeys {
			for _, cluster := range snap.clusters {
				if snap.hasWCKey(name, wckey, cluster) {
					continue
				}

				draft := models.WCKey{
					User:      name,
					Name:      wckey,
					Cluster:   cluster,
					IsDefault: strings.EqualFold(wckey, defaultWCKey),
				}
				plan.WCKeys = append(plan.WCKeys, draft)

				if owner != nil {
					owner.WCKeys = append(owner.WCKeys, draft)
				}
			}
		}
	}

	if plan.Empty() {
		e.logger.Debug("Nothing new to add", "users", req.Users.String())

		return plan, nil
	}

	if len(plan.Associations) == 0 && len(plan.WCKeys) == 0 {
		return nil, diag.Errorf(diag.KindReference, "No associations or wckeys created.")
	}

	e.logger.Debug(
		"Provisioning plan ready",
		"users", len(plan.Users), "associations", len(plan.Associations), "wckeys", len(plan.WCKeys),
	)

	return plan, nil
}

// draftAssociations returns the missing associations of user on
// (account, cluster). Requested partitions exclude the cluster wide tuple.
func draftAssociations(
	snap *snapshot,
	user, account, cluster string,
	partitions models.NameList,
	template models.Limits,
) []models.Association {
	var drafts []models.Association

	newDraft := func(partition string) models.Association {
		return models.Association{
			User:          user,
			Account:       account,
			Cluster:       cluster,
			Partition:     partition,
			ParentAccount: account,
			Limits:        template.Clone(),
		}
	}

	if len(partitions) > 0 {
		for _, partition := range partitions {
			key := models.AssociationKey{User: user, Account: account, Cluster: cluster, Partition: partition}
			if !snap.hasAssoc(key) {
				drafts = append(drafts, newDraft(partition))
			}
		}

		return drafts
	}

	if !snap.hasAssoc(models.AssociationKey{User: user, Account: account, Cluster: cluster}) {
		drafts = append(drafts, newDraft(""))
	}

	return drafts
}

// resolveClusters returns the requested clusters that exist, or every
// cluster when none is requested.
func (e *Engine) resolveClusters(ctx context.Context, requested models.NameList) (models.NameList, error) {
	clusters, err := e.storage.Clusters(ctx, &models.ClusterCondition{Names: requested})
	if err != nil {
		return nil, diag.Errorf(diag.KindBackend, "Problem getting clusters from database.  Contact your admin.: %w", err)
	}

	var found models.NameList
	for _, c := range clusters {
		found = append(found, c.Name)
	}

	if len(requested) == 0 {
		if len(found) == 0 {
			return nil, diag.Errorf(diag.KindPrecondition, "Can't add users, no cluster defined yet.\n Please contact your administrator.")
		}

		return found, nil
	}

	var resolved models.NameList

	for _, name := range requested {
		if !found.Contains(name) {
			e.diag.Reportf(diag.KindReference, "This cluster '%s' doesn't exist.\n        Contact your admin to add it to accounting.", name)

			continue
		}

		resolved = append(resolved, name)
	}

	if len(resolved) == 0 {
		return nil, diag.Errorf(diag.KindReference, "None of the requested clusters exist.")
	}

	return resolved, nil
}

// lookupWCKeys fetches the existing wckeys of users on clusters applying the
// wckey lookup policy to failures.
func (e *Engine) lookupWCKeys(ctx context.Context, users, clusters models.NameList) ([]models.WCKey, error) {
	wckeys, err := e.storage.WCKeys(ctx, &models.WCKeyCondition{Users: users, Clusters: clusters})
	if err == nil {
		return wckeys, nil
	}

	tolerated := e.wckeyPolicy == WCKeyTolerate ||
		(e.wckeyPolicy == WCKeyPermission && errors.Is(err, storage.ErrPermissionDenied))

	if !tolerated {
		return nil, diag.Errorf(diag.KindBackend, "Problem getting wckeys from database: %w", err)
	}

	e.logger.Warn("Failed to fetch existing wckeys. If you are a coordinator ignore this error", "policy", e.wckeyPolicy, "err", err)

	return nil, nil
}

// confirmIdentity asks for confirmation when name has no uid.
func (e *Engine) confirmIdentity(ctx context.Context, name string) (bool, error) {
	_, err := e.identity.LookupUID(name)
	if err == nil {
		return true, nil
	}

	e.logger.Debug("uid lookup failed", "user", name, "err", err)

	ok, err := e.prompter.Confirm(ctx, fmt.Sprintf("There is no uid for user '%s'\nAre you sure you want to continue?", name))
	if err != nil {
		return false, diag.Errorf(diag.KindPrecondition, "Confirmation failed: %w", err)
	}

	return ok, nil
}

// refCache memoizes account and account base association checks for one
// Plan call so that every missing reference is reported once.
type refCache struct {
	snap  *snapshot
	diag  *diag.Diagnostics
	cache *ttlcache.Cache[string, bool]
}

func newRefCache(snap *snapshot, d *diag.Diagnostics) *refCache {
	return &refCache{
		snap:  snap,
		diag:  d,
		cache: ttlcache.New[string, bool](ttlcache.WithDisableTouchOnHit[string, bool]()),
	}
}

func (r *refCache) close() {
	r.cache.DeleteAll()
}

func (r *refCache) lookup(key string, check func() bool, report func()) bool {
	if item := r.cache.Get(key); item != nil {
		return item.Value()
	}

	ok := check()
	if !ok {
		report()
	}

	r.cache.Set(key, ok, ttlcache.NoTTL)

	return ok
}

// account returns true when account exists.
func (r *refCache) account(account string) bool {
	return r.lookup(
		"account/"+strings.ToLower(account),
		func() bool { return r.snap.hasAccount(account) },
		func() {
			r.diag.Reportf(diag.KindReference, "This account '%s' doesn't exist.\n        Contact your admin to add this account.", account)
		},
	)
}

// base returns true when account has a base association on cluster.
func (r *refCache) base(account, cluster string) bool {
	return r.lookup(
		"base/"+strings.ToLower(account)+"/"+strings.ToLower(cluster),
		func() bool { return r.snap.hasAssoc(models.AssociationKey{Account: account, Cluster: cluster}) },
		func() {
			r.diag.Reportf(
				diag.KindReference,
				"This account '%s' doesn't exist on cluster %s\n        Contact your admin to add this account.",
				account, cluster,
			)
		},
	)
}
