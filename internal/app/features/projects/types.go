// internal/app/features/projects/types.go
package projects

import (
	"time"

	"github.com/dalemusser/questhub/internal/app/system/templategen"
	"github.com/dalemusser/questhub/internal/domain/models"
)

type createRequest struct {
	Title       string     `json:"title" validate:"required,max=200" label:"Title"`
	Description string     `json:"description" validate:"max=10000" label:"Description"`
	Columns     []string   `json:"columns" validate:"omitempty,max=5,dive,taskstatus" label:"Columns"`
	Deadline    *time.Time `json:"deadline"`
}

type updateRequest struct {
	Title         *string    `json:"title" validate:"omitempty,max=200" label:"Title"`
	Description   *string    `json:"description" validate:"omitempty,max=10000" label:"Description"`
	Columns       []string   `json:"columns" validate:"omitempty,max=5,dive,taskstatus" label:"Columns"`
	Deadline      *time.Time `json:"deadline"`
	ClearDeadline bool       `json:"clear_deadline"`
}

// applyTemplateRequest either carries the tasks to create or asks for a
// template to be generated first.
type applyTemplateRequest struct {
	Tasks       []templategen.TaskTemplate `json:"tasks" validate:"max=50,dive" label:"Tasks"`
	Generate    *templategen.Request       `json:"generate"`
	AssigneeIDs []string                   `json:"assignee_ids" validate:"required,min=1,max=200,dive,objectid" label:"Students"`
	Priority    string                     `json:"priority" validate:"omitempty,priority" label:"Priority"`
	Points      int                        `json:"points" validate:"omitempty,min=1,max=1000" label:"Points"`
}

type projectListItem struct {
	models.Project
	TaskCount int64 `json:"task_count"`
	DoneCount int64 `json:"done_count"`
}

type appliedResponse struct {
	Source  string        `json:"source,omitempty"`
	Created int           `json:"created"`
	Tasks   []models.Task `json:"tasks"`
}
