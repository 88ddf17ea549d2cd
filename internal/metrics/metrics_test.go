package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register()
}

func TestCounters(t *testing.T) {
	Register()

	before := testutil.ToFloat64(mutations.WithLabelValues("test_op"))
	IncMutation("test_op")
	IncMutation("test_op")
	assert.Equal(t, before+2, testutil.ToFloat64(mutations.WithLabelValues("test_op")))

	before = testutil.ToFloat64(reconciliations.WithLabelValues("applied"))
	IncReconciliation("applied")
	assert.Equal(t, before+1, testutil.ToFloat64(reconciliations.WithLabelValues("applied")))

	before = testutil.ToFloat64(guardRejections.WithLabelValues("test_op"))
	IncGuardRejection("test_op")
	assert.Equal(t, before+1, testutil.ToFloat64(guardRejections.WithLabelValues("test_op")))

	before = testutil.ToFloat64(remoteWriteFailures.WithLabelValues("test_op"))
	IncRemoteWriteFailure("test_op")
	assert.Equal(t, before+1, testutil.ToFloat64(remoteWriteFailures.WithLabelValues("test_op")))
}

func TestRevenueGauge(t *testing.T) {
	Register()

	SetRevenue(350)
	assert.Equal(t, 350.0, testutil.ToFloat64(revenue))
	SetRevenue(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(revenue))
}
