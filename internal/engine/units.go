package engine

import (
	"context"
	"time"

	"studioflow/internal/agents"
)

type BriefRefiner interface {
	Refine(ctx context.Context, in agents.BriefInput) (agents.Brief, error)
}

type ProjectEvaluator interface {
	Evaluate(ctx context.Context, in agents.EvaluationInput) (agents.Evaluation, error)
}

type FeaturePlanner interface {
	Plan(ctx context.Context, in agents.PlanInput) (agents.FeaturePlan, error)
}

type ArchitectureAdvisor interface {
	Advise(ctx context.Context, in agents.ArchitectureInput) (agents.Architecture, error)
}

type TaskPlanner interface {
	Breakdown(ctx context.Context, in agents.BreakdownInput) (agents.Breakdown, error)
}

type Operations interface {
	CollectStandups(ctx context.Context, date time.Time) (agents.StandupCollection, error)
	AssignTasks(ctx context.Context, taskIDs []string) (agents.AssignmentResult, error)
	NudgeLateTasks(ctx context.Context) (agents.NudgeResult, error)
	DailySummary(ctx context.Context, date time.Time) (agents.DailySummary, error)
}

type QualityAssessor interface {
	Assess(ctx context.Context, in agents.QualityInput) (agents.QualityReport, error)
}

type ReleaseComposer interface {
	Compose(ctx context.Context, in agents.ReleaseInput) (agents.ReleaseNotes, error)
}

type Narrator interface {
	Weekly(ctx context.Context, s agents.WeeklyStats) (string, error)
	Standup(ctx context.Context, collected int) (string, error)
}

// Units are the decision units the workflows call, one per step.
type Units struct {
	Brief        BriefRefiner
	Evaluator    ProjectEvaluator
	Features     FeaturePlanner
	Architecture ArchitectureAdvisor
	Tasks        TaskPlanner
	Ops          Operations
	Quality      QualityAssessor
	Release      ReleaseComposer
	Narrator     Narrator
}

// Store is what the default units persist through.
type Store interface {
	agents.TaskStore
	agents.OpsStore
}

// DefaultUnits builds the stock units sharing base. notifier may be nil.
func DefaultUnits(base agents.Base, store Store, notifier agents.Notifier) Units {
	return Units{
		Brief:        agents.BriefRefiner{Base: base},
		Evaluator:    agents.Evaluator{Base: base},
		Features:     agents.FeaturePlanner{Base: base},
		Architecture: agents.ArchitectureAdvisor{Base: base},
		Tasks:        agents.TaskPlanner{Base: base, Store: store},
		Ops:          agents.Ops{Base: base, Store: store, Notifier: notifier},
		Quality:      agents.QualityAssessor{Base: base},
		Release:      agents.ReleaseComposer{Base: base},
		Narrator:     agents.Narrator{Base: base},
	}
}
