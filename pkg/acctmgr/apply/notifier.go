package apply

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/metrics"
)

// BusyMessage is printed when a mutation takes longer than the busy delay.
const BusyMessage = " Database is busy or waiting for lock from other user."

// notifier signals that a mutation is in flight. It provides no mutual
// exclusion, concurrent sessions are serialized by the storage backend.
type notifier struct {
	out       io.Writer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	busyAfter time.Duration
	directive string

	mu      sync.Mutex
	started time.Time
	stop    chan struct{}
	done    chan struct{}
}

// begin marks the start of a mutation section. Calling begin on a started
// notifier is a no-op.
func (n *notifier) begin() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stop != nil {
		return
	}

	n.started = time.Now()
	n.stop = make(chan struct{})
	n.done = make(chan struct{})

	n.metrics.MutationStarted()
	n.logger.Debug("Mutation started", "directive", n.directive)

	go n.watch(n.stop, n.done)
}

func (n *notifier) watch(stop, done chan struct{}) {
	defer close(done)

	if n.busyAfter <= 0 {
		<-stop

		return
	}

	timer := time.NewTimer(n.busyAfter)
	defer timer.Stop()

	select {
	case <-timer.C:
		fmt.Fprintln(n.out, BusyMessage)
		n.logger.Warn("Mutation is taking long", "directive", n.directive, "busy_after", n.busyAfter)
		<-stop
	case <-stop:
	}
}

// end marks the end of a mutation section. Calling end on a stopped
// notifier is a no-op.
func (n *notifier) end() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stop == nil {
		return
	}

	close(n.stop)
	<-n.done

	n.stop, n.done = nil, nil

	elapsed := time.Since(n.started)
	n.metrics.MutationFinished(n.directive, elapsed)
	n.logger.Debug("Mutation finished", "directive", n.directive, "duration", elapsed)
}
