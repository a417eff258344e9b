package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	before := testutil.ToFloat64(TurnsTotal.WithLabelValues("agent", "stream", "completed"))
	r.TurnFinished(transcript.ModeAgent, transcript.StreamModeStream, "completed", 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(TurnsTotal.WithLabelValues("agent", "stream", "completed")))

	before = testutil.ToFloat64(StreamEventsTotal.WithLabelValues("update"))
	r.EventReceived("update")
	r.EventReceived("update")
	assert.Equal(t, before+2, testutil.ToFloat64(StreamEventsTotal.WithLabelValues("update")))

	before = testutil.ToFloat64(RejectedPayloadsTotal.WithLabelValues("malformed"))
	r.PayloadRejected("malformed")
	assert.Equal(t, before+1, testutil.ToFloat64(RejectedPayloadsTotal.WithLabelValues("malformed")))
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(QueueDepth))
}
