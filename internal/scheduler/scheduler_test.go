package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/memlayer/memcore/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := New(Config{Enabled: true, NumWorkers: 2, QueueSize: 10}, nil)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func TestScheduleTaskRunsRegisteredHandler(t *testing.T) {
	svc := newTestService(t)
	done := make(chan map[string]interface{}, 1)
	svc.RegisterHandler("greet", func(ctx context.Context, payload map[string]interface{}) error {
		done <- payload
		return nil
	})

	id, err := svc.ScheduleTask("greet", map[string]interface{}{"name": "Drew"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	select {
	case payload := <-done:
		require.Equal(t, "Drew", payload["name"])
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}
}

func TestScheduleTaskReturnsEmptyWhenDisabled(t *testing.T) {
	svc := New(Config{Enabled: false}, nil)
	svc.Start(context.Background())
	defer svc.Stop()

	id, err := svc.ScheduleTask("anything", nil)
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestUnregisteredTaskTypeIsDroppedNotPanicked(t *testing.T) {
	svc := newTestService(t)
	id, err := svc.ScheduleTask("no_such_handler", nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		return svc.GetTaskStatus(id) == types.TaskFailed
	}, time.Second, 10*time.Millisecond)
}

func TestGetTaskStatusUnknownIDReturnsNotFound(t *testing.T) {
	svc := newTestService(t)
	require.Equal(t, types.TaskNotFound, svc.GetTaskStatus("task_does_not_exist"))
}

func TestCancelTaskCancelsPendingDelay(t *testing.T) {
	svc := newTestService(t)
	svc.RegisterHandler("delayed", func(ctx context.Context, payload map[string]interface{}) error {
		return nil
	})

	id, err := svc.Schedule("delayed", nil, 60, 5)
	require.NoError(t, err)

	cancelled := svc.CancelTask(id)
	require.True(t, cancelled)

	require.Eventually(t, func() bool {
		return svc.GetTaskStatus(id) == types.TaskCancelled
	}, time.Second, 10*time.Millisecond)
}

func TestCancelTaskUnknownIDReturnsFalse(t *testing.T) {
	svc := newTestService(t)
	require.False(t, svc.CancelTask("task_does_not_exist"))
}

func TestScheduleRecurringFiresImmediatelyThenOnInterval(t *testing.T) {
	svc := newTestService(t)
	var count int64
	svc.RegisterHandler("heartbeat", func(ctx context.Context, payload map[string]interface{}) error {
		atomic.AddInt64(&count, 1)
		return nil
	})

	id := svc.ScheduleRecurring("heartbeat", 30*time.Millisecond, nil)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&count) >= 2
	}, time.Second, 10*time.Millisecond)

	require.True(t, svc.CancelTask(id))
}

func TestScheduleRecurringReturnsEmptyWhenDisabled(t *testing.T) {
	svc := New(Config{Enabled: false}, nil)
	svc.Start(context.Background())
	defer svc.Stop()

	id := svc.ScheduleRecurring("heartbeat", time.Second, nil)
	require.Empty(t, id)
}

func TestSessionRateLimitRejectsBurstOverflow(t *testing.T) {
	svc := New(Config{
		Enabled:                   true,
		NumWorkers:                2,
		QueueSize:                 10,
		SessionRateLimitPerSecond: 0.001,
		SessionRateLimitBurst:     1,
	}, nil)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	svc.RegisterHandler("noop", func(ctx context.Context, payload map[string]interface{}) error {
		return nil
	})

	payload := map[string]interface{}{"session_id": "sess_abc"}
	id, err := svc.Schedule("noop", payload, 0, 5)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = svc.Schedule("noop", payload, 0, 5)
	require.Error(t, err, "second task in the same burst window must be rejected as over the session cap")
}

func TestSessionRateLimitIsScopedPerSession(t *testing.T) {
	svc := New(Config{
		Enabled:                   true,
		NumWorkers:                2,
		QueueSize:                 10,
		SessionRateLimitPerSecond: 0.001,
		SessionRateLimitBurst:     1,
	}, nil)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	svc.RegisterHandler("noop", func(ctx context.Context, payload map[string]interface{}) error {
		return nil
	})

	_, err := svc.Schedule("noop", map[string]interface{}{"session_id": "sess_a"}, 0, 5)
	require.NoError(t, err)

	_, err = svc.Schedule("noop", map[string]interface{}{"session_id": "sess_b"}, 0, 5)
	require.NoError(t, err, "a different session has its own cap")
}

func TestRecurringRateLimitSkipsTicksOverBudget(t *testing.T) {
	svc := New(Config{
		Enabled:                     true,
		NumWorkers:                  2,
		QueueSize:                   10,
		RecurringRateLimitPerSecond: 0.001,
		RecurringRateLimitBurst:     1,
	}, nil)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)

	var count int64
	svc.RegisterHandler("cleanup", func(ctx context.Context, payload map[string]interface{}) error {
		atomic.AddInt64(&count, 1)
		return nil
	})

	id := svc.ScheduleRecurring("cleanup", 10*time.Millisecond, nil)
	require.NotEmpty(t, id)

	time.Sleep(150 * time.Millisecond)
	require.True(t, svc.CancelTask(id))

	require.Equal(t, int64(1), atomic.LoadInt64(&count), "ticks beyond the initial burst should be rate-limited away")
}

func TestHandlerPanicIsRecoveredAndMarkedFailed(t *testing.T) {
	svc := newTestService(t)
	svc.RegisterHandler("boom", func(ctx context.Context, payload map[string]interface{}) error {
		panic("kaboom")
	})

	id, err := svc.ScheduleTask("boom", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return svc.GetTaskStatus(id) == types.TaskFailed
	}, time.Second, 10*time.Millisecond)
}
