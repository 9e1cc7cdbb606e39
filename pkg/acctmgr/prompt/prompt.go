// Package prompt asks the operator to confirm changes before they are
// committed.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// DefaultTimeout is the time given to the operator to answer.
const DefaultTimeout = 30 * time.Second

// ErrNoAnswer is returned when the operator did not answer in time.
var ErrNoAnswer = errors.New("no answer given")

// Prompter asks yes/no questions.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Immediate answers yes to every question without asking.
type Immediate struct{}

// Confirm implements Prompter interface.
func (Immediate) Confirm(context.Context, string) (bool, error) {
	return true, nil
}

// Terminal asks on a terminal with an interactive form and falls back to
// reading a line from In otherwise. Unanswered questions default to no.
type Terminal struct {
	In      io.Reader
	Out     io.Writer
	Timeout time.Duration
	Logger  *slog.Logger

	once    sync.Once
	lines   chan string
	readErr error
}

// NewTerminal returns a Terminal reading from stdin and writing to stdout.
func NewTerminal(timeout time.Duration, logger *slog.Logger) *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stdout, Timeout: timeout, Logger: logger}
}

func (t *Terminal) timeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}

	return t.Timeout
}

// interactive returns true when both ends are terminals.
func (t *Terminal) interactive() bool {
	in, ok := t.In.(*os.File)
	if !ok {
		return false
	}

	out, ok := t.Out.(*os.File)
	if !ok {
		return false
	}

	return isTerminal(in) && isTerminal(out)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Confirm implements Prompter interface.
func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	if t.interactive() {
		return t.confirmForm(ctx, question)
	}

	return t.confirmLine(ctx, question)
}

func (t *Terminal) confirmForm(ctx context.Context, question string) (bool, error) {
	var ok bool

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Description(fmt.Sprintf("You have %s to decide", t.timeout())).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithInput(t.In).WithOutput(t.Out).WithTimeout(t.timeout()).RunWithContext(ctx)

	switch {
	case errors.Is(err, huh.ErrTimeout):
		fmt.Fprintf(t.Out, "\nYou didn't respond in %s, defaulting to no\n", t.timeout())

		return false, nil
	case errors.Is(err, huh.ErrUserAborted):
		return false, nil
	case err != nil:
		return false, err
	}

	return ok, nil
}

// readLines reads In line by line for the lifetime of the Terminal. A line
// not consumed by a question is kept for the next one.
func (t *Terminal) readLines() {
	t.lines = make(chan string)

	go func() {
		defer close(t.lines)

		r := bufio.NewReader(t.In)

		for {
			line, err := r.ReadString('\n')
			if line != "" {
				t.lines <- strings.TrimSpace(line)
			}

			if err != nil {
				t.readErr = err

				return
			}
		}
	}()
}

func (t *Terminal) confirmLine(ctx context.Context, question string) (bool, error) {
	t.once.Do(t.readLines)

	fmt.Fprintf(t.Out, "%s (You have %d seconds to decide)\n(N/y): ", question, int(t.timeout().Seconds()))

	timer := time.NewTimer(t.timeout())
	defer timer.Stop()

	select {
	case line, ok := <-t.lines:
		if ok {
			return strings.EqualFold(line, "y") || strings.EqualFold(line, "yes"), nil
		}

		// readErr is set before lines is closed
		if errors.Is(t.readErr, io.EOF) {
			fmt.Fprintln(t.Out)

			return false, nil
		}

		return false, t.readErr
	case <-timer.C:
		fmt.Fprintf(t.Out, "\nYou didn't respond in %d seconds, defaulting to no\n", int(t.timeout().Seconds()))

		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Scripted answers questions from a fixed list of answers. Questions beyond
// the list are answered no. It records every question asked.
type Scripted struct {
	Answers   []bool
	Questions []string
}

// Confirm implements Prompter interface.
func (s *Scripted) Confirm(_ context.Context, question string) (bool, error) {
	s.Questions = append(s.Questions, question)

	if len(s.Answers) == 0 {
		return false, nil
	}

	answer := s.Answers[0]
	s.Answers = s.Answers[1:]

	return answer, nil
}
