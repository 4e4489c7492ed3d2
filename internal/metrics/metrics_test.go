package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetLiveStatus(t *testing.T) {
	SetLiveStatus("connected")
	assert.Equal(t, 1.0, testutil.ToFloat64(LiveStatus.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(LiveStatus.WithLabelValues("connecting")))

	SetLiveStatus("error")
	assert.Equal(t, 0.0, testutil.ToFloat64(LiveStatus.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(LiveStatus.WithLabelValues("error")))
}

func TestRecordIntent(t *testing.T) {
	okBefore := testutil.ToFloat64(Intents.WithLabelValues("chat", "ok"))
	rejBefore := testutil.ToFloat64(Intents.WithLabelValues("chat", "rejected"))

	RecordIntent("chat", nil)
	RecordIntent("chat", errors.New("blocked"))
	RecordIntent("chat", errors.New("blocked"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(Intents.WithLabelValues("chat", "ok")))
	assert.Equal(t, rejBefore+2, testutil.ToFloat64(Intents.WithLabelValues("chat", "rejected")))
}
