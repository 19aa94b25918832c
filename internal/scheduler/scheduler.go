// Package scheduler is the task scheduler (spec §4.11): a handler registry
// plus one-shot and recurring task dispatch, grounded on the teacher's
// channel-and-worker-pool enrichment queue
// (internal/engine/enrichment_queue.go, enrichment_worker.go) but
// generalized from a single fixed job type to an arbitrary
// task-type → handler registry, since spec §4.11 names an open set of
// task types (decompose_facts, auto_enrich, generate_tiers, decay,
// open-thread detection, task cleanup, ...) rather than one.
package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/memlayer/memcore/pkg/types"
)

// Handler processes a single task's payload. Returned errors are logged by
// the worker and never rethrown (spec §4.11 "uncaught errors are logged,
// never rethrown, and do not abort the scheduler or other tasks").
type Handler func(ctx context.Context, payload map[string]interface{}) error

// Config tunes worker pool sizing, matching the teacher's Config shape
// (internal/engine/types.go Config/DefaultConfig).
type Config struct {
	Enabled         bool
	NumWorkers      int
	QueueSize       int
	ShutdownTimeout time.Duration

	// RecurringRateLimitPerSecond/RecurringRateLimitBurst throttle recurring
	// task dispatch (decay/cleanup passes) with a token bucket, adapted from
	// the teacher's web/handlers/middleware.go RateLimiter into a
	// non-HTTP gate on runRecurringTick. Zero disables the limiter.
	RecurringRateLimitPerSecond float64
	RecurringRateLimitBurst     int

	// SessionRateLimitPerSecond/SessionRateLimitBurst implement spec §5's
	// per-session soft/hard operation caps as a per-session token bucket:
	// the sustained rate is the soft cap, the burst size is the hard cap a
	// session can never exceed in one instant. Zero disables the limiter.
	SessionRateLimitPerSecond float64
	SessionRateLimitBurst     int
}

// WithDefaults fills unset fields. Enabled has no unset sentinel (a bool
// zero value is a legitimate "disabled"), so New always honors the caller's
// Enabled value as given.
func (c Config) WithDefaults() Config {
	if c.NumWorkers <= 0 {
		c.NumWorkers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	return c
}

type job struct {
	id       string
	taskType string
	payload  map[string]interface{}
}

type recurringEntry struct {
	id       string
	taskType string
	interval time.Duration
	payload  map[string]interface{}
	cancel   func()
}

// Service is the task scheduler. Zero value is not usable; construct with
// New.
type Service struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	handlers  map[string]Handler
	tasks     map[string]*taskState
	recurring map[string]*recurringEntry

	queue chan job
	wg    sync.WaitGroup

	workerCtx    context.Context
	workerCancel context.CancelFunc
	started      bool

	recurringLimiter *rate.Limiter

	sessionMu       sync.Mutex
	sessionLimiters map[string]*rate.Limiter
}

type taskState struct {
	state   types.TaskState
	errText string
	cancel  func() // cancels a pending delay timer; nil once the delay has elapsed
}

// New constructs a Service. Call Start before scheduling any tasks: Schedule
// and ScheduleRecurring both depend on the worker pool/context Start sets up.
func New(cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	svc := &Service{
		cfg:       cfg,
		logger:    logger,
		handlers:  make(map[string]Handler),
		tasks:     make(map[string]*taskState),
		recurring: make(map[string]*recurringEntry),
	}
	if cfg.RecurringRateLimitPerSecond > 0 {
		svc.recurringLimiter = rate.NewLimiter(rate.Limit(cfg.RecurringRateLimitPerSecond), burstOrOne(cfg.RecurringRateLimitBurst))
	}
	return svc
}

func burstOrOne(burst int) int {
	if burst <= 0 {
		return 1
	}
	return burst
}

// sessionLimiter returns (creating if needed) the per-session token bucket
// backing spec §5's soft/hard per-session caps.
func (s *Service) sessionLimiter(sessionID string) *rate.Limiter {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.sessionLimiters == nil {
		s.sessionLimiters = make(map[string]*rate.Limiter)
	}
	lim, ok := s.sessionLimiters[sessionID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.cfg.SessionRateLimitPerSecond), burstOrOne(s.cfg.SessionRateLimitBurst))
		s.sessionLimiters[sessionID] = lim
	}
	return lim
}

// RegisterHandler associates a handler with taskType (spec §4.11 "Handler
// registry"). Registering the same taskType twice replaces the previous
// handler.
func (s *Service) RegisterHandler(taskType string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[taskType] = handler
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.queue = make(chan job, s.cfg.QueueSize)
	s.workerCtx, s.workerCancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for i := 0; i < s.cfg.NumWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop cancels in-flight delays, drains the queue, and waits up to
// ShutdownTimeout for running workers to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	for _, entry := range s.recurring {
		entry.cancel()
	}
	s.workerCancel()
	close(s.queue)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownTimeout):
		s.logger.Warn("scheduler: shutdown timeout reached, some tasks may be dropped")
	}
}

func newTaskID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "task_" + hex.EncodeToString(buf)
}

// Schedule implements spec §4.11 schedule_task(type, payload,
// delay_seconds=0, priority=5). priority is accepted for interface
// completeness but this scheduler runs one-shot tasks with no ordering
// guarantee between different task ids (spec §5 "Ordering guarantees"), so
// it has no effect on dispatch order. Returns "" and a nil error when the
// scheduler is globally disabled, matching spec's "returns None".
func (s *Service) Schedule(taskType string, payload map[string]interface{}, delaySeconds, priority int) (string, error) {
	if !s.cfg.Enabled {
		return "", nil
	}

	if s.cfg.SessionRateLimitPerSecond > 0 {
		if sessionID, _ := payload["session_id"].(string); sessionID != "" {
			if !s.sessionLimiter(sessionID).Allow() {
				return "", fmt.Errorf("scheduler: per-session task rate exceeded for session %q", sessionID)
			}
		}
	}

	id := newTaskID()
	ts := &taskState{state: types.TaskPending}
	s.mu.Lock()
	s.tasks[id] = ts
	s.mu.Unlock()

	run := func() {
		s.dispatch(id, taskType, payload)
	}

	if delaySeconds <= 0 {
		s.enqueue(id, taskType, payload)
		return id, nil
	}

	timerCtx, cancel := context.WithCancel(s.workerCtx)
	s.mu.Lock()
	ts.cancel = cancel
	s.mu.Unlock()

	go func() {
		timer := time.NewTimer(time.Duration(delaySeconds) * time.Second)
		defer timer.Stop()
		select {
		case <-timer.C:
			run()
		case <-timerCtx.Done():
			s.mu.Lock()
			if t, ok := s.tasks[id]; ok && t.state == types.TaskPending {
				t.state = types.TaskCancelled
			}
			s.mu.Unlock()
		}
	}()
	return id, nil
}

// ScheduleTask is the narrow two-argument shape internal/memory.Scheduler
// requires (no delay, default priority), so *Service can be passed directly
// as a memory.Deps.Scheduler value.
func (s *Service) ScheduleTask(taskType string, payload map[string]interface{}) (string, error) {
	return s.Schedule(taskType, payload, 0, 5)
}

func (s *Service) enqueue(id, taskType string, payload map[string]interface{}) {
	select {
	case s.queue <- job{id: id, taskType: taskType, payload: payload}:
	default:
		s.logger.Warn("scheduler: queue full, dropping task", "task_type", taskType, "task_id", id)
		s.mu.Lock()
		if t, ok := s.tasks[id]; ok {
			t.state = types.TaskFailed
			t.errText = "queue full"
		}
		s.mu.Unlock()
	}
}

func (s *Service) worker(workerID int) {
	defer s.wg.Done()
	for j := range s.queue {
		s.dispatch(j.id, j.taskType, j.payload)
	}
}

func (s *Service) dispatch(id, taskType string, payload map[string]interface{}) {
	s.mu.Lock()
	handler, ok := s.handlers[taskType]
	if t, exists := s.tasks[id]; exists {
		t.state = types.TaskRunning
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("scheduler: no handler registered, dropping task", "task_type", taskType, "task_id", id)
		s.finish(id, types.TaskFailed, fmt.Sprintf("no handler registered for task type %q", taskType))
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduler: task handler panicked", "task_type", taskType, "task_id", id, "panic", r)
				s.finish(id, types.TaskFailed, fmt.Sprintf("panic: %v", r))
			}
		}()
		if err := handler(context.Background(), payload); err != nil {
			s.logger.Warn("scheduler: task handler failed", "task_type", taskType, "task_id", id, "error", err)
			s.finish(id, types.TaskFailed, err.Error())
			return
		}
		s.finish(id, types.TaskCompleted, "")
	}()
}

func (s *Service) finish(id string, state types.TaskState, errText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return
	}
	t.state = state
	t.errText = errText
}

// CancelTask implements spec §4.11 cancel_task(id). It is best-effort (spec
// §5): it cancels a pending delay timer and marks the entry cancelled, but
// does not forcibly terminate an already-running handler.
func (s *Service) CancelTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.recurring[id]; ok {
		entry.cancel()
		delete(s.recurring, id)
		return true
	}

	t, ok := s.tasks[id]
	if !ok || t.state != types.TaskPending {
		return false
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.state = types.TaskCancelled
	return true
}

// GetTaskStatus implements spec §4.11 get_task_status(id).
func (s *Service) GetTaskStatus(id string) types.TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return types.TaskNotFound
	}
	return t.state
}
