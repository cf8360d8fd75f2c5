package dtw

import "time"

// Scope controls visibility of a resource across projects.
type Scope string

const (
	ScopePrivate Scope = "private"
	ScopePublic  Scope = "public"
)

// Workload is a delay-tolerant workload: a deferred workflow execution that
// must complete by Deadline and whose start time is chosen by the scheduler.
type Workload struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	WorkflowID     string         `json:"workflow_id,omitempty"`
	WorkflowName   string         `json:"workflow_name"`
	WorkflowInput  map[string]any `json:"workflow_input,omitempty"`
	WorkflowParams map[string]any `json:"workflow_params,omitempty"`
	Deadline       time.Time      `json:"deadline"`
	JobDuration    int            `json:"job_duration,omitempty"` // estimated duration in minutes, 0 = unknown
	Scope          Scope          `json:"scope"`
	Executed       bool           `json:"executed"`
	Scheduled      bool           `json:"scheduled"`
	TrustID        string         `json:"trust_id,omitempty"`
	ProjectID      string         `json:"project_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// WorkloadFilter narrows workload list queries. Zero-valued fields are
// ignored; Executed is a tri-state (nil = no filter).
type WorkloadFilter struct {
	Name         string
	WorkflowName string
	Scope        Scope
	Executed     *bool
	Limit        int
	Offset       int
}

// CronTrigger is a persisted future workflow execution. A trigger with an
// empty Pattern and RemainingExecutions=1 is a one-shot trigger; a nil
// RemainingExecutions means unbounded recurrence.
type CronTrigger struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Pattern             string         `json:"pattern,omitempty"`
	NextExecutionTime   time.Time      `json:"next_execution_time"`
	RemainingExecutions *int           `json:"remaining_executions,omitempty"`
	WorkflowID          string         `json:"workflow_id,omitempty"`
	WorkflowName        string         `json:"workflow_name"`
	WorkflowInput       map[string]any `json:"workflow_input,omitempty"`
	WorkflowParams      map[string]any `json:"workflow_params,omitempty"`
	TrustID             string         `json:"trust_id,omitempty"`
	ProjectID           string         `json:"project_id,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}
