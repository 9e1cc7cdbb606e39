package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.MutationStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inFlight))

	m.MutationFinished("add_user", 10*time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))

	m.Drafted("association", 4)
	m.Drafted("association", 0)
	assert.Equal(t, float64(4), testutil.ToFloat64(m.drafted.WithLabelValues("association")))

	m.Transaction("add_user", OutcomeCommitted)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transactions.WithLabelValues("add_user", OutcomeCommitted)))

	m.ObserveError(diag.KindReference)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("reference")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.errors.WithLabelValues("parse")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	m.MutationStarted()
	m.MutationFinished("add_user", time.Second)
	m.Drafted("user", 1)
	m.Transaction("add_user", OutcomeNoop)
	m.ObserveError(diag.KindParse)
	require.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "acctmgr.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Transaction("delete_user", OutcomeDiscarded)

	path := filepath.Join(t.TempDir(), "acctmgr.prom")
	require.NoError(t, m.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `acctmgr_transactions_total{directive="delete_user",outcome="discarded"} 1`)
	assert.Contains(t, string(content), `acctmgr_errors_total{kind="backend"} 0`)
	assert.Contains(t, string(content), "acctmgr_last_run_timestamp_seconds")

	require.Error(t, m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "acctmgr.prom")))
}
