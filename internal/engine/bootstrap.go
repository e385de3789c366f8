package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studioflow/internal/agents"
	"studioflow/internal/domain"
	"studioflow/internal/events"
)

const nameBootstrap = "ProjectBootstrap"

type NewProjectInput struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Client      *agents.ClientInfo `json:"clientInfo,omitempty"`
	Market      *agents.MarketInfo `json:"marketInfo,omitempty"`
}

type BootstrapResult struct {
	RunID         string              `json:"runId"`
	ProjectID     string              `json:"projectId"`
	Project       domain.Project      `json:"project"`
	TasksCreated  int                 `json:"tasksCreated"`
	TasksAssigned int                 `json:"tasksAssigned"`
	Architecture  agents.Architecture `json:"architecture"`
	Summary       string              `json:"summary"`
}

// BootstrapProject takes a client brief from intake to an assigned task board:
// refine, evaluate, create the project, plan features, advise on architecture,
// break the MVP down into tasks and assign them. A rejected evaluation fails
// the run with an *ApprovalError before anything is created.
func (e Engine) BootstrapProject(ctx context.Context, in NewProjectInput) (BootstrapResult, error) {
	if strings.TrimSpace(in.Name) == "" {
		return BootstrapResult{}, errors.New("project name is required")
	}
	var out BootstrapResult
	run, err := e.saga(ctx, domain.RunProjectBootstrap, nameBootstrap, in, func(ctx context.Context, run domain.WorkflowRun) (string, error) {
		raw := in.Description
		if strings.TrimSpace(raw) == "" {
			raw = in.Name
		}
		brief, err := e.Units.Brief.Refine(ctx, agents.BriefInput{RawBrief: raw, Client: in.Client})
		if err != nil {
			return "", fmt.Errorf("refine brief: %w", err)
		}

		eval, err := e.Units.Evaluator.Evaluate(ctx, agents.EvaluationInput{
			Name:        in.Name,
			Description: brief.RefinedDescription,
			Goals:       brief.Goals,
			Market:      in.Market,
		})
		if err != nil {
			return "", fmt.Errorf("evaluate project: %w", err)
		}
		if !eval.Approved {
			return "", &ApprovalError{Evaluation: eval}
		}

		project, err := e.Repo.InsertProject(ctx, domain.Project{
			Name:        in.Name,
			Description: brief.RefinedDescription,
			Status:      domain.ProjectPlanning,
			Priority:    eval.Priority,
		})
		if err != nil {
			return "", err
		}
		out.Project, out.ProjectID = project, project.ID
		if _, err := e.Ledger.LogEvent(ctx, domain.EventProjectCreated, "project", project.ID, events.EventPayload{
			"projectId": project.ID,
			"name":      project.Name,
			"status":    project.Status,
			"priority":  project.Priority,
		}); err != nil {
			return "", err
		}

		plan, err := e.Units.Features.Plan(ctx, agents.PlanInput{
			ProjectID:   project.ID,
			Description: brief.RefinedDescription,
			Goals:       brief.Goals,
		})
		if err != nil {
			return "", fmt.Errorf("plan features: %w", err)
		}

		// Advisory only; nothing below depends on it.
		arch, err := e.Units.Architecture.Advise(ctx, agents.ArchitectureInput{ProjectID: project.ID, Features: plan.Features})
		if err != nil {
			return "", fmt.Errorf("architecture advice: %w", err)
		}
		out.Architecture = arch

		breakdown, err := e.Units.Tasks.Breakdown(ctx, agents.BreakdownInput{ProjectID: project.ID, Features: plan.MVPFeatures})
		if err != nil {
			return "", fmt.Errorf("break down features: %w", err)
		}
		out.TasksCreated = breakdown.TasksCreated
		for _, t := range breakdown.Tasks {
			if _, err := e.Ledger.LogEvent(ctx, domain.EventTaskCreated, "task", t.ID, events.EventPayload{
				"taskId":    t.ID,
				"projectId": project.ID,
				"title":     t.Title,
			}); err != nil {
				return "", err
			}
		}

		assigned, err := e.Units.Ops.AssignTasks(ctx, breakdown.TaskIDs)
		if err != nil {
			return "", fmt.Errorf("assign tasks: %w", err)
		}
		out.TasksAssigned = assigned.Assigned
		for _, a := range assigned.Assignments {
			if _, err := e.Ledger.LogEvent(ctx, domain.EventTaskUpdated, "task", a.TaskID, events.EventPayload{
				"taskId":     a.TaskID,
				"assigneeId": a.EmployeeID,
				"workload":   a.Workload,
			}); err != nil {
				return "", err
			}
		}

		out.Summary = fmt.Sprintf("Project created: %s. %d tasks created, %d assigned. Priority: %d.",
			project.Name, out.TasksCreated, out.TasksAssigned, project.Priority)
		return out.Summary, nil
	})
	out.RunID = run.ID
	return out, err
}
