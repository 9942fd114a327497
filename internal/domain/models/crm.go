package models

import "time"

// Contact is a lead or client
type Contact struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            *string   `json:"email,omitempty"`
	Phone            *string   `json:"phone,omitempty"`
	Type             string    `json:"type"`
	Source           *string   `json:"source,omitempty"`
	Notes            *string   `json:"notes,omitempty"`
	MessengerPSID    *string   `json:"messenger_psid,omitempty"`
	InstagramID      *string   `json:"instagram_id,omitempty"`
	OwnerID          *string   `json:"owner_id,omitempty"`
	CreatedDate      time.Time `json:"created_date"`
	LastModifiedDate time.Time `json:"last_modified_date"`
}

// FullName joins first and last name
func (c *Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Pipeline is an ordered set of stages
type Pipeline struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsDefault   bool      `json:"is_default"`
	CreatedDate time.Time `json:"created_date"`
	Stages      []Stage   `json:"stages,omitempty"`
}

// Stage is a Kanban column
type Stage struct {
	ID         string         `json:"id"`
	PipelineID string         `json:"pipeline_id"`
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Position   int            `json:"position"`
	Templates  []TaskTemplate `json:"task_templates,omitempty"`
}

// TaskTemplate creates a task when an opportunity enters its stage
type TaskTemplate struct {
	ID            string  `json:"id"`
	StageID       string  `json:"stage_id"`
	Title         string  `json:"title"`
	Description   *string `json:"description,omitempty"`
	DurationValue int     `json:"duration_value"`
	DurationUnit  string  `json:"duration_unit"`
	Position      int     `json:"position"`
	Condition     *string `json:"condition,omitempty"`
	AssigneeRole  *string `json:"assignee_role,omitempty"`
}

// Opportunity is a matter moving through a pipeline
type Opportunity struct {
	ID               string     `json:"id"`
	ContactID        string     `json:"contact_id"`
	PipelineID       string     `json:"pipeline_id"`
	StageID          string     `json:"stage_id"`
	Title            string     `json:"title"`
	PracticeArea     *string    `json:"practice_area,omitempty"`
	EstimatedValue   float64    `json:"estimated_value"`
	OwnerID          *string    `json:"owner_id,omitempty"`
	Source           *string    `json:"source,omitempty"`
	StageEnteredAt   time.Time  `json:"stage_entered_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	CreatedDate      time.Time  `json:"created_date"`
	LastModifiedDate time.Time  `json:"last_modified_date"`
}

// ConditionEnv exposes the opportunity to task-template conditions
func (o *Opportunity) ConditionEnv() map[string]interface{} {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return map[string]interface{}{
		"title":            o.Title,
		"practice_area":    deref(o.PracticeArea),
		"estimated_value":  o.EstimatedValue,
		"source":           deref(o.Source),
		"owner_id":         deref(o.OwnerID),
		"stage_id":         o.StageID,
		"pipeline_id":      o.PipelineID,
		"stage_entered_at": o.StageEnteredAt,
		"created_date":     o.CreatedDate,
	}
}

// BoardColumn is one stage of the Kanban board
type BoardColumn struct {
	Stage         Stage         `json:"stage"`
	Opportunities []Opportunity `json:"opportunities"`
}

// Board is a pipeline with its opportunities grouped by stage
type Board struct {
	Pipeline Pipeline      `json:"pipeline"`
	Columns  []BoardColumn `json:"columns"`
}

// Task is a to-do item, either manual or created from a template
type Task struct {
	ID            string     `json:"id"`
	OpportunityID *string    `json:"opportunity_id,omitempty"`
	ContactID     *string    `json:"contact_id,omitempty"`
	StageID       *string    `json:"stage_id,omitempty"`
	TemplateID    *string    `json:"template_id,omitempty"`
	Title         string     `json:"title"`
	Description   *string    `json:"description,omitempty"`
	AssigneeID    *string    `json:"assignee_id,omitempty"`
	Status        string     `json:"status"`
	DueAt         *time.Time `json:"due_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CompletedByID *string    `json:"completed_by_id,omitempty"`
	CreatedDate   time.Time  `json:"created_date"`
}

// IsCompleted reports whether the task is done
func (t *Task) IsCompleted() bool {
	return t.Status == "completed"
}

// TaskFilter narrows task listings
type TaskFilter struct {
	AssigneeID    string
	Status        string
	OpportunityID string
	DueBefore     *time.Time
	Limit         int
	Offset        int
}

// ScheduledJob is a deferred automation step
type ScheduledJob struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	OpportunityID string     `json:"opportunity_id"`
	StageID       string     `json:"stage_id"`
	TaskID        *string    `json:"task_id,omitempty"`
	RunAt         time.Time  `json:"run_at"`
	Status        string     `json:"status"`
	LastError     *string    `json:"last_error,omitempty"`
	CreatedDate   time.Time  `json:"created_date"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}
