package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

func TestPrometheusRecorder_Counters(t *testing.T) {
	rec := NewPrometheusRecorder(prometheus.NewRegistry())

	rec.MessageHandled("replied")
	rec.MessageHandled("replied")
	rec.MessageHandled("dropped")
	rec.StatusArchived("delivered", true)
	rec.StatusArchived("read", false)
	rec.FunctionDispatched("searchCourses", 200)
	rec.FunctionDispatched("unknown", 400)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.messagesTotal.WithLabelValues("replied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.messagesTotal.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.statusesTotal.WithLabelValues("delivered", "archived")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.statusesTotal.WithLabelValues("read", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.functionsTotal.WithLabelValues("searchCourses", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.functionsTotal.WithLabelValues("unknown", "4xx")))
}

func TestPrometheusRecorder_ObservesRetries(t *testing.T) {
	rec := NewPrometheusRecorder(prometheus.NewRegistry())

	policy := resilience.DefaultPolicy().WithObserver(rec.ObserveRetry)
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	policy.Jitter = func() time.Duration { return 0 }

	calls := 0
	err := resilience.Do(context.Background(), policy, "embedding", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("ThrottlingException: slow down")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.retriesTotal.WithLabelValues("embedding")))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.retryWaitSecond))
}
