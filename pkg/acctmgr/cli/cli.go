// Package cli implements the CLI of the acctmgr app
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/ceems-dev/acctmgr/internal/identity"
	internal_runtime "github.com/ceems-dev/acctmgr/internal/runtime"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/apply"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/base"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/builder"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/metrics"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/models"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/prompt"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/provision"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/report"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage/sqlite"
	"github.com/prometheus/common/model"
	"github.com/prometheus/common/promslog"
	"github.com/prometheus/common/promslog/flag"
	"github.com/prometheus/common/version"
)

// ErrFailed is returned when the directive reported errors. The errors have
// already been printed.
var ErrFailed = errors.New("directive failed")

// Full command names.
const (
	cmdAddUser           = "add user"
	cmdAddCoordinator    = "add coordinator"
	cmdAddAccount        = "add account"
	cmdAddCluster        = "add cluster"
	cmdListUser          = "list user"
	cmdModifyUser        = "modify user"
	cmdDeleteUser        = "delete user"
	cmdDeleteCoordinator = "delete coordinator"
)

const withAssocQuestion = "You requested options that are only vaild when querying with the withassoc option.\n" +
	"Are you sure you want to continue?"

// AcctMgr represents the `acctmgr` cli.
type AcctMgr struct {
	appName string
	App     *kingpin.Application

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Overridden in tests
	configDirs []string
	prompter   prompt.Prompter
	identity   identity.Resolver
}

// NewAcctMgr creates a new AcctMgr instance.
func NewAcctMgr() *AcctMgr {
	return &AcctMgr{
		appName: base.AppName,
		App:     kingpin.New(base.AppName, base.AppDescription),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Main is the entry point of the `acctmgr` command.
func (a *AcctMgr) Main() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx, os.Args[1:])
}

// session holds everything a directive needs at run time.
type session struct {
	config   *Config
	logger   *slog.Logger
	diag     *diag.Diagnostics
	metrics  *metrics.Metrics
	store    *sqlite.Store
	prompter prompt.Prompter
	args     []string
}

// Run parses args and executes the requested directive.
func (a *AcctMgr) Run(ctx context.Context, args []string) error {
	var (
		configFile = a.App.Flag(
			"config.file",
			"Path to acctmgr configuration file.",
		).Envar("ACCTMGR_CONFIG_FILE").Default("").String()
		storagePath = a.App.Flag(
			"storage.path",
			"Path to the accounting database file.",
		).Envar("ACCTMGR_STORAGE_PATH").String()
		immediate = a.App.Flag(
			"immediate",
			"Commit changes without asking for confirmation.",
		).Short('i').Bool()
		trackWCKey = a.App.Flag(
			"track-wckey",
			"Track workload characterization keys of users.",
		).Bool()
		wckeyPolicy = a.App.Flag(
			"wckey.lookup-policy",
			"Policy applied when existing wckeys cannot be looked up.",
		).Enum(provision.WCKeyLookupPolicies()...)
		outputFormat = a.App.Flag(
			"output.format",
			"Rendering format of list directives.",
		).Enum(report.Formats()...)
		promptTimeout = a.App.Flag(
			"prompt.timeout",
			"Time given to answer the commit question before changes are discarded.",
		).String()
		busyAfter = a.App.Flag(
			"notice.busy-after",
			"Print a busy notice when a mutation takes longer than this duration. Zero disables it.",
		).String()
		metricsFile = a.App.Flag(
			"metrics.textfile",
			"Write run metrics to this file in Prometheus text format.",
		).Envar("ACCTMGR_METRICS_TEXTFILE").String()
	)

	clauses := make(map[string]*[]string)

	add := a.App.Command("add", "Add entities to the accounting database.").Alias("create")
	list := a.App.Command("list", "Display entities of the accounting database.").Alias("show")
	modify := a.App.Command("modify", "Modify entities of the accounting database.").Alias("update")
	del := a.App.Command("delete", "Delete entities from the accounting database.").Alias("remove")

	for _, c := range []struct {
		parent *kingpin.CmdClause
		name   string
		alias  string
		help   string
	}{
		{add, "user", "", "Add users with their associations."},
		{add, "coordinator", "coord", "Add coordinators to accounts."},
		{add, "account", "", "Add accounts."},
		{add, "cluster", "", "Add clusters."},
		{list, "user", "", "List users."},
		{modify, "user", "", "Modify users and their associations."},
		{del, "user", "", "Delete users or their associations."},
		{del, "coordinator", "coord", "Remove coordinators from accounts."},
	} {
		cmd := c.parent.Command(c.name, c.help)
		if c.alias != "" {
			cmd.Alias(c.alias)
		}

		clauses[c.parent.FullCommand()+" "+c.name] = cmd.Arg("clauses", "Clauses of the directive.").Strings()
	}

	promslogConfig := &promslog.Config{Writer: a.Stderr}
	flag.AddFlags(a.App, promslogConfig)
	a.App.GetFlag("log.level").Default("warn")

	a.App.Version(version.Print(a.appName))
	a.App.UsageWriter(a.Stdout)
	a.App.ErrorWriter(a.Stderr)
	a.App.HelpFlag.Short('h')

	command, err := a.App.Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse CLI flags: %w", err)
	}

	logger := promslog.New(promslogConfig).With("operator", internal_runtime.Operator())

	logger.Debug("Starting "+a.appName, "version", version.Info())
	logger.Debug("Build context", "build_context", version.BuildContext())
	logger.Debug("Running on", "uname", internal_runtime.Uname())

	dirs := a.configDirs
	if dirs == nil {
		dirs = configDirs()
	}

	config, usedFile, err := readConfig(*configFile, dirs)
	if err != nil {
		logger.Error("Failed to read configuration", "err", err)

		return err
	}

	logger.Debug("Configuration loaded", "file", usedFile)

	// Flags take precedence over config file
	if *storagePath != "" {
		config.Storage.Path = *storagePath
	}

	if *immediate {
		config.Prompt.Immediate = true
	}

	if *trackWCKey {
		config.WCKeys.Track = true
	}

	if *wckeyPolicy != "" {
		config.WCKeys.LookupPolicy = *wckeyPolicy
	}

	if *outputFormat != "" {
		config.Output.Format = *outputFormat
	}

	if *metricsFile != "" {
		config.Metrics.Textfile = *metricsFile
	}

	for _, d := range []struct {
		value string
		dest  *model.Duration
		name  string
	}{
		{*promptTimeout, &config.Prompt.Timeout, "prompt.timeout"},
		{*busyAfter, &config.Notice.BusyAfter, "notice.busy-after"},
	} {
		if d.value == "" {
			continue
		}

		v, err := model.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}

		*d.dest = v
	}

	m := metrics.New()

	defer func() {
		if err := m.WriteTextfile(config.Metrics.Textfile); err != nil {
			logger.Error("Failed to write metrics", "err", err)
		}
	}()

	d := diag.New(a.Stderr, logger)
	d.SetObserver(m.ObserveError)

	store, err := sqlite.Open(ctx, sqlite.Config{Path: config.Storage.Path, Logger: logger})
	if err != nil {
		d.Report(diag.Wrap(diag.KindBackend, fmt.Errorf("Problem talking to the database: %w", err)))

		return ErrFailed
	}
	defer store.Close()

	s := &session{
		config:   config,
		logger:   logger,
		diag:     d,
		metrics:  m,
		store:    store,
		prompter: a.newPrompter(config, logger),
		args:     *clauses[command],
	}

	logger.Debug("Running directive", "command", command, "clauses", len(s.args))

	if err := a.dispatch(ctx, command, s); err != nil && !d.Failed() {
		return err
	}

	if d.Failed() {
		return ErrFailed
	}

	return nil
}

// newPrompter returns the prompter used to confirm changes.
func (a *AcctMgr) newPrompter(config *Config, logger *slog.Logger) prompt.Prompter {
	if a.prompter != nil {
		return a.prompter
	}

	if config.Prompt.Immediate {
		return prompt.Immediate{}
	}

	return &prompt.Terminal{
		In:      a.Stdin,
		Out:     a.Stdout,
		Timeout: time.Duration(config.Prompt.Timeout),
		Logger:  logger,
	}
}

func (a *AcctMgr) orchestrator(s *session) *apply.Orchestrator {
	return apply.New(apply.Config{
		Storage:   s.store,
		Prompter:  s.prompter,
		Diag:      s.diag,
		Out:       a.Stdout,
		Logger:    s.logger,
		Metrics:   s.metrics,
		BusyAfter: time.Duration(s.config.Notice.BusyAfter),
	})
}

// dispatch parses the clauses of command and runs it. Directives with parse
// errors are not executed.
func (a *AcctMgr) dispatch(ctx context.Context, command string, s *session) error {
	switch command {
	case cmdAddUser:
		req := builder.ParseAddUser(s.args, s.diag)
		if s.diag.Failed() {
			return nil
		}

		policy, err := provision.ParseWCKeyLookupPolicy(s.config.WCKeys.LookupPolicy)
		if err != nil {
			return err
		}

		engine := provision.New(provision.Config{
			Storage:     s.store,
			Prompter:    s.prompter,
			Identity:    a.identity,
			Diag:        s.diag,
			Logger:      s.logger,
			TrackWCKey:  s.config.WCKeys.Track,
			WCKeyPolicy: policy,
		})

		return a.orchestrator(s).Provision(ctx, engine, *req)
	case cmdAddCoordinator:
		cond, scope := builder.ParseCondition(s.args, s.diag, false)
		if s.diag.Failed() {
			return nil
		}

		return a.orchestrator(s).AddCoordinators(ctx, cond, scope)
	case cmdAddAccount:
		accounts := builder.ParseAddAccount(s.args, s.diag)
		if s.diag.Failed() {
			return nil
		}

		return a.orchestrator(s).AddAccounts(ctx, accounts)
	case cmdAddCluster:
		clusters := builder.ParseAddCluster(s.args, s.diag)
		if s.diag.Failed() {
			return nil
		}

		return a.orchestrator(s).AddClusters(ctx, clusters)
	case cmdListUser:
		return a.listUsers(ctx, s)
	case cmdModifyUser:
		req := builder.ParseModify(s.args, s.diag)
		if s.diag.Failed() {
			return nil
		}

		return a.orchestrator(s).ModifyUsers(ctx, req)
	case cmdDeleteUser:
		cond, scope := builder.ParseCondition(s.args, s.diag, false)
		if s.diag.Failed() {
			return nil
		}

		return a.orchestrator(s).RemoveUsers(ctx, cond, scope)
	case cmdDeleteCoordinator:
		cond, _ := builder.ParseCondition(s.args, s.diag, false)
		if s.diag.Failed() {
			return nil
		}

		return a.orchestrator(s).RemoveCoordinators(ctx, cond)
	}

	return fmt.Errorf("unknown command %q", command)
}

// listUsers renders the users matching the clauses.
func (a *AcctMgr) listUsers(ctx context.Context, s *session) error {
	cond, scope := builder.ParseCondition(s.args, s.diag, true)
	if s.diag.Failed() {
		return nil
	}

	if !cond.WithAssocs && scope.Has(models.ScopeAssoc) {
		ok, err := s.prompter.Confirm(ctx, withAssocQuestion)
		if err != nil {
			s.diag.Report(diag.Wrap(diag.KindBackend, fmt.Errorf("failed to read answer: %w", err)))

			return nil
		}

		if !ok {
			fmt.Fprintln(a.Stdout, "Aborted")

			return nil
		}
	}

	format, err := report.ParseFormat(s.config.Output.Format)
	if err != nil {
		return err
	}

	names := cond.Format
	if len(names) == 0 {
		names = report.DefaultFields(cond, s.config.WCKeys.Track)
	}

	fields, err := report.ParseFields(names)
	if err != nil {
		s.diag.Report(diag.Wrap(diag.KindParse, err))

		return nil
	}

	users, err := s.store.Users(ctx, cond)
	if err != nil {
		s.diag.Report(diag.Wrap(diag.KindBackend, fmt.Errorf("Problem with query: %w", err)))

		return nil
	}

	// Queries never leave anything to persist
	if err := s.store.Commit(ctx, false); err != nil {
		s.logger.Warn("Failed to close read transaction", "err", err)
	}

	report.Users(a.Stdout, users, fields, format)

	return nil
}
