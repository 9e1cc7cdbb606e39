package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImmediate(t *testing.T) {
	ok, err := Immediate{}.Confirm(t.Context(), "Would you like to commit changes?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTerminalLine(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		answer bool
	}{
		{name: "yes", input: "y\n", answer: true},
		{name: "full yes", input: "Yes\n", answer: true},
		{name: "no", input: "n\n", answer: false},
		{name: "empty", input: "\n", answer: false},
		{name: "eof", input: "", answer: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer

			term := &Terminal{In: strings.NewReader(test.input), Out: &out, Timeout: time.Second}

			ok, err := term.Confirm(t.Context(), "Would you like to commit changes?")
			require.NoError(t, err)
			assert.Equal(t, test.answer, ok)
			assert.Contains(t, out.String(), "Would you like to commit changes? (You have 1 seconds to decide)\n(N/y): ")
		})
	}
}

func TestTerminalSuccessiveQuestions(t *testing.T) {
	var out bytes.Buffer

	term := &Terminal{In: strings.NewReader("y\nn\n"), Out: &out, Timeout: time.Second}

	ok, err := term.Confirm(t.Context(), "first?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = term.Confirm(t.Context(), "second?")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTerminalTimeout(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	var out bytes.Buffer

	term := &Terminal{In: r, Out: &out, Timeout: 50 * time.Millisecond}

	ok, err := term.Confirm(t.Context(), "commit?")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "defaulting to no")
}

func TestTerminalAnswerAfterTimeout(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	var out bytes.Buffer

	term := &Terminal{In: r, Out: &out, Timeout: 50 * time.Millisecond}

	ok, err := term.Confirm(t.Context(), "first?")
	require.NoError(t, err)
	assert.False(t, ok)

	go func() {
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte("y\n"))
	}()

	term.Timeout = 2 * time.Second

	ok, err = term.Confirm(t.Context(), "second?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTerminalEOFAnswersNo(t *testing.T) {
	term := &Terminal{In: strings.NewReader("y"), Out: io.Discard, Timeout: time.Second}

	ok, err := term.Confirm(t.Context(), "first?")
	require.NoError(t, err)
	assert.True(t, ok)

	for range 2 {
		ok, err = term.Confirm(t.Context(), "again?")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestTerminalCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	term := &Terminal{In: r, Out: io.Discard, Timeout: time.Minute}

	_, err := term.Confirm(ctx, "commit?")
	require.ErrorIs(t, err, context.Canceled)
}

func TestScripted(t *testing.T) {
	s := &Scripted{Answers: []bool{true}}

	ok, err := s.Confirm(t.Context(), "a?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Confirm(t.Context(), "b?")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"a?", "b?"}, s.Questions)
}
