// Package diag accumulates the errors reported while a directive runs and
// derives the exit status from them.
package diag

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Kind classifies a reported error.
type Kind uint8

// Error kinds.
const (
	KindParse Kind = iota
	KindReference
	KindPrecondition
	KindBackend
	KindReconciliation
)

var kindNames = map[Kind]string{
	KindParse:          "parse",
	KindReference:      "reference",
	KindPrecondition:   "precondition",
	KindBackend:        "backend",
	KindReconciliation: "reconciliation",
}

// String implements Stringer interface.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return "unknown"
}

// Kinds returns all error kinds.
func Kinds() []Kind {
	return []Kind{KindParse, KindReference, KindPrecondition, KindBackend, KindReconciliation}
}

// Error is an error with a kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements error interface.
func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}

	return e.Msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf returns a new *Error of given kind.
func Errorf(kind Kind, format string, args ...any) error {
	err := fmt.Errorf(format, args...)

	return &Error{Kind: kind, Msg: err.Error(), Err: errors.Unwrap(err)}
}

// Wrap returns err as an *Error of given kind. Existing kinds are kept.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of err. Errors without kind are backend errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindBackend
}

// Entry is a reported error.
type Entry struct {
	Kind Kind
	Msg  string
}

// Diagnostics accumulates reported errors. Once an error is reported the exit
// status stays non zero.
type Diagnostics struct {
	mu       sync.Mutex
	w        io.Writer
	logger   *slog.Logger
	entries  []Entry
	observer func(Kind)
}

// New returns a new Diagnostics writing messages to w.
func New(w io.Writer, logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Diagnostics{w: w, logger: logger}
}

// SetObserver registers fn to be called for every reported error.
func (d *Diagnostics) SetObserver(fn func(Kind)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.observer = fn
}

// Reportf reports an error of given kind.
func (d *Diagnostics) Reportf(kind Kind, format string, args ...any) {
	d.add(kind, fmt.Sprintf(format, args...))
}

// Report reports err. Nil errors are ignored.
func (d *Diagnostics) Report(err error) {
	if err == nil {
		return
	}

	d.add(KindOf(err), err.Error())
}

func (d *Diagnostics) add(kind Kind, msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = append(d.entries, Entry{Kind: kind, Msg: msg})

	if d.w != nil {
		fmt.Fprintf(d.w, " %s\n", msg)
	}

	d.logger.Debug("Error reported", "kind", kind, "msg", msg)

	if d.observer != nil {
		d.observer(kind)
	}
}

// Failed returns true when at least one error was reported.
func (d *Diagnostics) Failed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.entries) > 0
}

// ExitCode returns the process exit status.
func (d *Diagnostics) ExitCode() int {
	if d.Failed() {
		return 1
	}

	return 0
}

// Entries returns a copy of the reported errors.
func (d *Diagnostics) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Entry(nil), d.entries...)
}

// Count returns the number of reported errors of given kind.
func (d *Diagnostics) Count(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var n int

	for _, e := range d.entries {
		if e.Kind == kind {
			n++
		}
	}

	return n
}
