package scheduler

import (
	"context"
	"time"
)

// ScheduleRecurring implements spec §4.11 schedule_recurring(type, interval,
// payload): the handler fires immediately, then every interval until
// CancelTask is called. A tick is never started while the previous one is
// still running (spec §5 "Recurring handlers are serialized with
// themselves"). Returns "" when the scheduler is globally disabled.
func (s *Service) ScheduleRecurring(taskType string, interval time.Duration, payload map[string]interface{}) string {
	if !s.cfg.Enabled {
		return ""
	}

	id := newTaskID()
	ctx, cancel := context.WithCancel(s.workerCtx)
	entry := &recurringEntry{id: id, taskType: taskType, interval: interval, payload: payload, cancel: cancel}

	s.mu.Lock()
	s.recurring[id] = entry
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runRecurring(ctx, entry)
	return id
}

func (s *Service) runRecurring(ctx context.Context, entry *recurringEntry) {
	defer s.wg.Done()

	s.runRecurringTick(entry)
	ticker := time.NewTicker(entry.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runRecurringTick(entry)
		}
	}
}

func (s *Service) runRecurringTick(entry *recurringEntry) {
	if s.recurringLimiter != nil && !s.recurringLimiter.Allow() {
		s.logger.Warn("scheduler: recurring task rate-limited, skipping tick", "task_type", entry.taskType)
		return
	}

	s.mu.Lock()
	handler, ok := s.handlers[entry.taskType]
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("scheduler: no handler registered for recurring task, skipping tick", "task_type", entry.taskType)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler: recurring task handler panicked", "task_type", entry.taskType, "panic", r)
		}
	}()
	if err := handler(context.Background(), entry.payload); err != nil {
		s.logger.Warn("scheduler: recurring task handler failed", "task_type", entry.taskType, "error", err)
	}
}
