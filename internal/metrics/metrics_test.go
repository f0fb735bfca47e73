package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRunLifecycle(t *testing.T) {
	RunsTotal.Reset()
	RunDuration.Reset()

	before := testutil.ToFloat64(RunsActive)
	RecordRunStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(RunsActive))

	RecordRunFinished("succeeded", 2*time.Second)
	assert.Equal(t, before, testutil.ToFloat64(RunsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(RunsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1, testutil.CollectAndCount(RunDuration))
}

func TestRecordPartition(t *testing.T) {
	StreaksClassified.Reset()

	events := testutil.ToFloat64(EventsProcessed)
	machines := testutil.ToFloat64(MachinesProcessed)

	RecordPartition(120, 3, map[string]int{OutcomeIncluded: 4, "restart_artifact": 1})

	assert.Equal(t, events+120, testutil.ToFloat64(EventsProcessed))
	assert.Equal(t, machines+1, testutil.ToFloat64(MachinesProcessed))
	assert.Equal(t, 4.0, testutil.ToFloat64(StreaksClassified.WithLabelValues(OutcomeIncluded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(StreaksClassified.WithLabelValues("restart_artifact")))
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/api/v1/runs/:id", "200", 15*time.Millisecond)
	RecordHTTPRequest("GET", "/api/v1/runs/:id", "200", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/runs/:id", "200")))
}
