package domain

// Run types.
const (
	RunProjectBootstrap = "PROJECT_BOOTSTRAP"
	RunDailyStandup     = "DAILY_STANDUP"
	RunWeeklyReport     = "WEEKLY_REPORT"
	RunReleasePrep      = "RELEASE_PREP"
)

// Run statuses. RUNNING is the only non-terminal state.
const (
	RunRunning   = "RUNNING"
	RunCompleted = "COMPLETED"
	RunFailed    = "FAILED"
)

// IsTerminalRunStatus reports whether a run in this status can no longer change.
func IsTerminalRunStatus(status string) bool {
	return status == RunCompleted || status == RunFailed
}

const (
	ProjectPlanning  = "PLANNING"
	ProjectActive    = "ACTIVE"
	ProjectOnHold    = "ON_HOLD"
	ProjectCompleted = "COMPLETED"
	ProjectCancelled = "CANCELLED"
)

const (
	TaskTodo       = "TODO"
	TaskInProgress = "IN_PROGRESS"
	TaskReview     = "REVIEW"
	TaskDone       = "DONE"
	TaskBlocked    = "BLOCKED"
)

func IsTaskStatus(status string) bool {
	switch status {
	case TaskTodo, TaskInProgress, TaskReview, TaskDone, TaskBlocked:
		return true
	}
	return false
}

const (
	RoleDeveloper = "DEVELOPER"
	RoleDesigner  = "DESIGNER"
	RoleQA        = "QA"
	RolePM        = "PM"
	RoleManager   = "MANAGER"
)

// Event types written to the ledger.
const (
	EventWorkflowTriggered        = "WORKFLOW_TRIGGERED"
	EventWorkflowCompleted        = "WORKFLOW_COMPLETED"
	EventProjectCreated           = "PROJECT_CREATED"
	EventProjectUpdated           = "PROJECT_UPDATED"
	EventTaskCreated              = "TASK_CREATED"
	EventTaskUpdated              = "TASK_UPDATED"
	EventTaskCompleted            = "TASK_COMPLETED"
	EventStandupSubmitted         = "STANDUP_SUBMITTED"
	EventGithubCommit             = "GITHUB_COMMIT"
	EventClickUpTaskCreated       = "CLICKUP_TASK_CREATED"
	EventClickUpTaskUpdated       = "CLICKUP_TASK_UPDATED"
	EventClickUpTaskStatusChanged = "CLICKUP_TASK_STATUS_CHANGED"
	EventTelegramMessage          = "TELEGRAM_MESSAGE"
	EventWhatsAppMessage          = "WHATSAPP_MESSAGE"
)

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"PLANNING,ACTIVE,ON_HOLD,COMPLETED,CANCELLED"`
	Priority    int    `json:"priority"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"project_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Status        string   `json:"status" enum:"TODO,IN_PROGRESS,REVIEW,DONE,BLOCKED"`
	AssigneeID    *string  `json:"assignee_id,omitempty"`
	AssigneeName  string   `json:"assignee_name,omitempty"`
	EstimateHours *float64 `json:"estimate_hours,omitempty"`
	DueDate       *string  `json:"due_date,omitempty" format:"date-time"`
	CreatedAt     string   `json:"created_at" format:"date-time"`
	UpdatedAt     string   `json:"updated_at" format:"date-time"`
}

type Employee struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Role          string  `json:"role" enum:"DEVELOPER,DESIGNER,QA,PM,MANAGER"`
	IsActive      bool    `json:"is_active"`
	WorkloadScore float64 `json:"workload_score"`
	ChatID        string  `json:"chat_id,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

type StandupEntry struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	ProjectID  *string `json:"project_id,omitempty"`
	Date       string  `json:"date" format:"date"`
	Yesterday  string  `json:"yesterday"`
	Today      string  `json:"today"`
	Blockers   *string `json:"blockers,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

// WorkflowRun is one saga execution. FinishedAt is nil exactly while Status is RUNNING.
type WorkflowRun struct {
	ID            string  `json:"id"`
	Type          string  `json:"type" enum:"PROJECT_BOOTSTRAP,DAILY_STANDUP,WEEKLY_REPORT,RELEASE_PREP"`
	Status        string  `json:"status" enum:"RUNNING,COMPLETED,FAILED"`
	StartedAt     string  `json:"started_at" format:"date-time"`
	FinishedAt    *string `json:"finished_at,omitempty" format:"date-time"`
	Metadata      string  `json:"metadata_json,omitempty"`
	ResultSummary string  `json:"result_summary,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
