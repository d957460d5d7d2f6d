// Package taskid defines the types shared between the command dispatcher
// and the local HTTP endpoint: task identifiers, command kinds, and the
// status events a running task reports back to its caller.
package taskid

import "github.com/google/uuid"

// Kind identifies which dispatcher handler a task is routed to.
type Kind string

const (
	KindAuth     Kind = "auth"
	KindSync     Kind = "sync"
	KindWorkOn   Kind = "workon"
	KindWorkDone Kind = "workdone"
	KindTasks    Kind = "tasks"
	KindUpdate   Kind = "update"
	KindLogs     Kind = "logs"
	KindSettings Kind = "settings"
	KindShutdown Kind = "shutdown"
	KindPing     Kind = "ping"
)

// New generates a fresh task id.
func New() string {
	return uuid.NewString()
}

// Status is the outcome tag on a status event drained via /api/results.
type Status string

const (
	StatusProgress Status = "progress"
	StatusWarn     Status = "warn"
	StatusError    Status = "error"
	StatusComplete Status = "complete"
	StatusTasks    Status = "tasks"
)

// Event is one status update pushed by a handler while (or after) it runs.
// Fields beyond TaskID and Status are populated as needed per handler; JSON
// tags keep the wire shape the companion web UI already expects.
type Event struct {
	TaskID    string `json:"task_id"`
	Status    Status `json:"status"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message,omitempty"`
	Locked    any    `json:"locked,omitempty"`
	Completed any    `json:"completed,omitempty"`
	Tasks     []string `json:"tasks,omitempty"`
}

// Task is one queued command: a kind, its task id, and the decoded payload.
type Task struct {
	ID   string
	Kind Kind
	Data map[string]any
}
