package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordSpin("red")
	r.RecordSpin("red")
	r.RecordSpin("green")
	r.RecordLastNumber(17)
	r.RecordVerification("group_20", true)
	r.RecordError("store_unavailable")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.spinsTotal.WithLabelValues("red")))
	assert.Equal(t, 17.0, testutil.ToFloat64(r.lastNumber))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.verifications.WithLabelValues("group_20", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("store_unavailable")))
}
