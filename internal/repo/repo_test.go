package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"studioflow/internal/db"
	"studioflow/internal/domain"
	"studioflow/internal/events"
	"studioflow/internal/migrate"
	"studioflow/internal/repo"
)

func newRepo(t *testing.T) (repo.Repo, events.Writer) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := func() time.Time { return time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC) }
	return repo.Repo{DB: conn, Now: now}, events.Writer{DB: conn, Now: now}
}

func TestRunLifecycle(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	run, err := r.CreateRun(ctx, domain.WorkflowRun{Type: domain.RunDailyStandup})
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != domain.RunRunning || run.FinishedAt != nil {
		t.Fatalf("new run %+v", run)
	}
	done, err := r.UpdateRunStatus(ctx, run.ID, domain.RunCompleted, "3 standups")
	if err != nil {
		t.Fatal(err)
	}
	if done.FinishedAt == nil || *done.FinishedAt != "2024-01-15T09:00:00Z" {
		t.Fatalf("finished run %+v", done)
	}
	if _, err := r.UpdateRunStatus(ctx, run.ID, domain.RunFailed, "late"); !errors.Is(err, repo.ErrRunTerminal) {
		t.Fatalf("expected ErrRunTerminal, got %v", err)
	}
	got, err := r.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.RunCompleted || got.ResultSummary != "3 standups" {
		t.Fatalf("terminal run changed: %+v", got)
	}
	if _, err := r.GetRun(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateTerminalRunIsFinished(t *testing.T) {
	r, _ := newRepo(t)
	run, err := r.CreateRun(context.Background(), domain.WorkflowRun{Type: domain.RunWeeklyReport, Status: domain.RunFailed})
	if err != nil {
		t.Fatal(err)
	}
	if run.FinishedAt == nil || *run.FinishedAt != run.StartedAt {
		t.Fatalf("terminal run without finish time: %+v", run)
	}
}

func TestListRunsFilters(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()
	for _, typ := range []string{domain.RunDailyStandup, domain.RunReleasePrep, domain.RunDailyStandup} {
		if _, err := r.CreateRun(ctx, domain.WorkflowRun{Type: typ}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := r.ListRuns(ctx, domain.RunDailyStandup, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 standup runs, got %d", len(runs))
	}
	runs, err = r.ListRuns(ctx, "", domain.RunCompleted, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no completed runs, got %d", len(runs))
	}
}

func TestEventsCursor(t *testing.T) {
	r, w := newRepo(t)
	ctx := context.Background()
	if id, err := r.LatestEventID(ctx); err != nil || id != 0 {
		t.Fatalf("empty log: %d %v", id, err)
	}
	var ids []int64
	for _, typ := range []string{domain.EventTaskCreated, domain.EventTaskUpdated, domain.EventTaskCompleted} {
		evt, err := w.Append(ctx, nil, typ, "task", "t1", nil)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, evt.ID)
	}
	after, err := r.EventsAfter(ctx, 10, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 2 || after[0].Type != domain.EventTaskUpdated || after[1].Payload != "{}" {
		t.Fatalf("unexpected events %+v", after)
	}
	latest, err := r.LatestEvents(ctx, 1, "", "task", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 1 || latest[0].ID != ids[2] {
		t.Fatalf("latest %+v", latest)
	}
}

func TestTaskTransitions(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()
	p, err := r.InsertProject(ctx, domain.Project{Name: "Board"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := r.InsertTask(ctx, domain.Task{ProjectID: p.ID, Title: "Build"})
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != domain.TaskTodo {
		t.Fatalf("default status %s", task.Status)
	}
	if _, err := r.UpdateTaskStatus(ctx, task.ID, domain.TaskDone, false); err == nil {
		t.Fatal("TODO -> DONE should need force")
	}
	moved, err := r.UpdateTaskStatus(ctx, task.ID, domain.TaskDone, true)
	if err != nil {
		t.Fatal(err)
	}
	if moved.Status != domain.TaskDone {
		t.Fatalf("status %s", moved.Status)
	}
	if _, err := r.UpdateTaskStatus(ctx, "missing", domain.TaskDone, true); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnknownTaskStatusRejectedEvenWithForce(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()
	p, err := r.InsertProject(ctx, domain.Project{Name: "Board"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := r.InsertTask(ctx, domain.Task{ProjectID: p.ID, Title: "Build"})
	if err != nil {
		t.Fatal(err)
	}
	for _, force := range []bool{false, true} {
		if _, err := r.UpdateTaskStatus(ctx, task.ID, "BANANA", force); err == nil {
			t.Fatalf("force=%v: expected unknown status to be rejected", force)
		}
	}
	got, err := r.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.TaskTodo {
		t.Fatalf("status changed to %s", got.Status)
	}
	if _, err := r.InsertTask(ctx, domain.Task{ProjectID: p.ID, Title: "Odd", Status: "DOING"}); err == nil {
		t.Fatal("expected insert with unknown status to fail")
	}
}
