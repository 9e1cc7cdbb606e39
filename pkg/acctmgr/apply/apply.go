// Package apply drives directives through mutation, preview and the final
// commit check.
package apply

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ceems-dev/acctmgr/internal/common"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/base"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/coord"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/metrics"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/prompt"
	"github.com/ceems-dev/acctmgr/pkg/acctmgr/storage"
)

// Directive names used in logs and metrics.
const (
	DirectiveAddUser           = "add_user"
	DirectiveAddAccount        = "add_account"
	DirectiveAddCluster        = "add_cluster"
	DirectiveAddCoordinator    = "add_coordinator"
	DirectiveModifyUser        = "modify_user"
	DirectiveDeleteUser        = "delete_user"
	DirectiveDeleteCoordinator = "delete_coordinator"
)

// Config of an Orchestrator.
type Config struct {
	Storage   storage.Storage
	Prompter  prompt.Prompter
	Diag      *diag.Diagnostics
	Out       io.Writer
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	BusyAfter time.Duration
}

// Orchestrator runs a single mutating directive. It is not reusable: once a
// terminal state is reached every further operation fails with
// ErrIllegalTransition.
type Orchestrator struct {
	storage  storage.Storage
	prompter prompt.Prompter
	diag     *diag.Diagnostics
	out      io.Writer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notifier *notifier

	directive string
	state     State
}

// New returns a new Orchestrator in Building state.
func New(c Config) *Orchestrator {
	if c.Prompter == nil {
		c.Prompter = prompt.Immediate{}
	}

	if c.Diag == nil {
		c.Diag = diag.New(nil, nil)
	}

	if c.Out == nil {
		c.Out = io.Discard
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	logger := c.Logger

	session, err := common.GetUUIDFromString([]string{base.AppName, time.Now().Format(time.RFC3339Nano)})
	if err == nil {
		logger = logger.With("session", session)
	}

	return &Orchestrator{
		storage:  c.Storage,
		prompter: c.Prompter,
		diag:     c.Diag,
		out:      c.Out,
		logger:   logger,
		metrics:  c.Metrics,
		notifier: &notifier{
			out:       c.Out,
			logger:    logger,
			metrics:   c.Metrics,
			busyAfter: c.BusyAfter,
		},
		state: StateBuilding,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// start binds the orchestrator to directive.
func (o *Orchestrator) start(directive string) error {
	if o.state != StateBuilding {
		return fmt.Errorf("%w: %s already run %s", ErrIllegalTransition, o.state, o.directive)
	}

	o.directive = directive
	o.notifier.directive = directive
	o.logger = o.logger.With("directive", directive)
	o.notifier.logger = o.logger

	o.logger.Debug("Directive started")

	return nil
}

// validated ends the building phase.
func (o *Orchestrator) validated() error {
	return o.transition(StateValidated)
}

// precondition reports a precondition failure and fails the directive.
func (o *Orchestrator) precondition(format string, args ...any) error {
	return o.fail(diag.Errorf(diag.KindPrecondition, format, args...))
}

// fail reports err, rolls back pending mutations and moves to Failed.
func (o *Orchestrator) fail(err error) error {
	o.notifier.end()

	if !errors.Is(err, coord.ErrUnresolved) {
		o.diag.Report(err)
	}

	if o.state == StateApplying || o.state == StateAwaitingConfirmation {
		if rerr := o.storage.Commit(context.Background(), false); rerr != nil {
			o.logger.Error("Failed to roll back changes", "err", rerr)
		}
	}

	o.metrics.Transaction(o.directive, metrics.OutcomeFailed)

	if terr := o.transition(StateFailed); terr != nil {
		return errors.Join(err, terr)
	}

	o.logger.Debug("Directive failed", "err", err)

	return err
}

// abort moves a validated directive to Discarded when the operator declined
// to go on before anything was mutated.
func (o *Orchestrator) abort() error {
	fmt.Fprintln(o.out, "Aborted")

	o.metrics.Transaction(o.directive, metrics.OutcomeDiscarded)

	return o.transition(StateDiscarded)
}

// ask suspends the notifier while the operator answers.
func (o *Orchestrator) ask(ctx context.Context, question string) (bool, error) {
	o.notifier.end()

	ok, err := o.prompter.Confirm(ctx, question)
	if err != nil {
		return false, diag.Wrap(diag.KindBackend, fmt.Errorf("failed to read answer: %w", err))
	}

	return ok, nil
}

// applying starts the mutation phase.
func (o *Orchestrator) applying() error {
	if err := o.transition(StateApplying); err != nil {
		return err
	}

	o.notifier.begin()

	return nil
}

// nothing ends a mutation phase that affected nothing.
func (o *Orchestrator) nothing(ctx context.Context) error {
	o.notifier.end()

	if err := o.storage.Commit(ctx, false); err != nil {
		return o.fail(diag.Wrap(diag.KindBackend, err))
	}

	o.metrics.Transaction(o.directive, metrics.OutcomeNoop)

	return o.transition(StateDiscarded)
}

// confirm asks the commit question and commits or discards the pending
// mutations.
func (o *Orchestrator) confirm(ctx context.Context) error {
	o.notifier.end()

	if err := o.transition(StateAwaitingConfirmation); err != nil {
		return err
	}

	ok, err := o.ask(ctx, base.CommitQuestion)
	if err != nil {
		return o.fail(err)
	}

	if !ok {
		return o.discard(ctx)
	}

	if err := o.storage.Commit(ctx, true); err != nil {
		return o.fail(diag.Wrap(diag.KindBackend, fmt.Errorf("failed to commit changes: %w", err)))
	}

	o.metrics.Transaction(o.directive, metrics.OutcomeCommitted)
	o.logger.Info("Changes committed")

	return o.transition(StateCommitted)
}

// discard rolls back the pending mutations.
func (o *Orchestrator) discard(ctx context.Context) error {
	o.println(base.DiscardedMsg)

	if err := o.storage.Commit(ctx, false); err != nil {
		return o.fail(diag.Wrap(diag.KindBackend, fmt.Errorf("failed to discard changes: %w", err)))
	}

	o.metrics.Transaction(o.directive, metrics.OutcomeDiscarded)
	o.logger.Info("Changes discarded")

	return o.transition(StateDiscarded)
}

// println prints a line once any pending mutation has returned so that the
// busy notice never follows the mutation results.
func (o *Orchestrator) println(a ...any) {
	o.notifier.end()

	fmt.Fprintln(o.out, a...)
}

// printList prints a header followed by one indented line per item.
func (o *Orchestrator) printList(header string, items []string) {
	o.notifier.end()

	var b strings.Builder

	b.WriteString(header)
	b.WriteByte('\n')

	for _, item := range items {
		fmt.Fprintf(&b, "  %s\n", item)
	}

	fmt.Fprint(o.out, b.String())
}
