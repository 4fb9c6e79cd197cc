package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilAndNoopAreSafe(t *testing.T) {
	ctx := context.Background()

	var nilObs *Observability
	assert.NotPanics(t, func() {
		nilObs.RecordStepSave(ctx, "CLIENT_LEAD", 2, time.Millisecond, "ok")
		nilObs.RecordJobProcessed(ctx, "update-report-status", "completed")
	})
	assert.NoError(t, nilObs.Shutdown(ctx))

	noop := NewNoop()
	assert.NotPanics(t, func() {
		noop.RecordStepSave(ctx, "TRUEBUDDY_LEAD", 5, time.Millisecond, "failed")
		noop.RecordJobProcessed(ctx, "update-report-status", "failed")
	})
	assert.NoError(t, noop.Shutdown(ctx))
}

func TestNew_RecordsAndShutsDown(t *testing.T) {
	obs, err := New("prereport-test")
	require.NoError(t, err)
	require.NotNil(t, obs.meterProvider)

	ctx := context.Background()
	obs.RecordStepSave(ctx, "CLIENT_LEAD", 1, 12*time.Millisecond, "ok")
	obs.RecordJobProcessed(ctx, "update-report-status", "completed")

	assert.NoError(t, obs.Shutdown(ctx))
}
