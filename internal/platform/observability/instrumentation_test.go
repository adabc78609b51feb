package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMetricAccumulates(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, nil)
	require.NoError(t, err)
	defer shutdown(context.Background())

	RecordMetric(context.Background(), "voice.command", 1, map[string]string{"kind": "navigate", "b": "x"})
	RecordMetric(context.Background(), "voice.command", 2, map[string]string{"b": "x", "kind": "navigate"})
	RecordMetric(context.Background(), "ws.open", 1, nil)

	snap := Snapshot()
	assert.Equal(t, 3.0, snap["voice.command{b=x,kind=navigate}"])
	assert.Equal(t, 1.0, snap["ws.open"])
}

func TestStartSpanCountsOutcome(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: true}, nil)
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, end := StartSpan(context.Background(), "classifier", "classify")
	end(nil)
	_, end = StartSpan(context.Background(), "classifier", "classify")
	end(errors.New("boom"))

	snap := Snapshot()
	assert.Equal(t, 1.0, snap["classifier.classify{outcome=ok}"])
	assert.Equal(t, 1.0, snap["classifier.classify{outcome=error}"])
	assert.True(t, Enabled())
}
