package types

import "time"

// TaskRecord is the scheduler's in-memory bookkeeping for a scheduled task
// (spec §3, §4.11). Task records are not persisted; they exist only for
// the runtime lifetime of the scheduler.
type TaskRecord struct {
	ID                 string                 `json:"id"`
	Type               string                 `json:"type"`
	Payload            map[string]interface{} `json:"payload,omitempty"`
	State              TaskState              `json:"state"`
	ScheduledAt        time.Time              `json:"scheduled_at"`
	RecurringInterval  time.Duration          `json:"recurring_interval,omitempty"`
	DefaultPayload     map[string]interface{} `json:"default_payload,omitempty"`
	Error              string                 `json:"error,omitempty"`
}
