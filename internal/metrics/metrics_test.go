package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var initOnce sync.Once

func TestInit(t *testing.T) {
	initOnce.Do(func() {
		Init("v1.0.0", "abc123", "2026-01-30")
	})
	require.Equal(t, float64(1), testutil.ToFloat64(AppInfo.WithLabelValues("v1.0.0", "abc123", "2026-01-30")))
}

func TestDBCollector_Collect(t *testing.T) {
	collector := NewDBCollector(func() PoolStats {
		return PoolStats{Open: 4, InUse: 1, Idle: 3, MaxOpen: 10}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		collector.Start(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(DBConnectionsOpen) == 4
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, float64(1), testutil.ToFloat64(DBConnectionsInUse))
	require.Equal(t, float64(3), testutil.ToFloat64(DBConnectionsIdle))
	require.Equal(t, float64(10), testutil.ToFloat64(DBConnectionsMaxOpen))

	collector.Stop()
	collector.Stop()
	cancel()
	<-done
}

func TestRecordQuery_ClassifiesErrors(t *testing.T) {
	before := testutil.ToFloat64(DBErrors.WithLabelValues("test_op", "timeout"))
	RecordQuery("test_op", time.Now(), errors.Join(errors.New("wrapped"), context.DeadlineExceeded))
	require.Equal(t, before+1, testutil.ToFloat64(DBErrors.WithLabelValues("test_op", "timeout")))

	before = testutil.ToFloat64(DBErrors.WithLabelValues("test_op", "query_error"))
	RecordQuery("test_op", time.Now(), nil)
	require.Equal(t, before, testutil.ToFloat64(DBErrors.WithLabelValues("test_op", "query_error")))
}
