package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"studioflow/internal/config"
	"studioflow/internal/db"
	"studioflow/internal/domain"
	"studioflow/internal/engine"
	"studioflow/internal/events"
	"studioflow/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

var fixedNow = time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default(), nil).WithClock(func() time.Time { return fixedNow })
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) addEmployee(t *testing.T, name, role string, workload float64) domain.Employee {
	t.Helper()
	e, err := env.Engine.Repo.InsertEmployee(env.Ctx, domain.Employee{
		Name: name, Email: strings.ToLower(name) + "@studio.test", Role: role, IsActive: true, WorkloadScore: workload,
	})
	if err != nil {
		t.Fatalf("insert employee: %v", err)
	}
	return e
}

func (env testEnv) assertRunInvariant(t *testing.T) {
	t.Helper()
	runs, err := env.Engine.Repo.ListRuns(env.Ctx, "", "", 100)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range runs {
		if (r.Status == domain.RunRunning) != (r.FinishedAt == nil) {
			t.Fatalf("run %s: status %s with finished_at %v", r.ID, r.Status, r.FinishedAt)
		}
	}
}

func countEvents(t *testing.T, env testEnv, evtType string) int {
	t.Helper()
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 1000, evtType, "", "")
	if err != nil {
		t.Fatal(err)
	}
	return len(evts)
}

func TestBootstrapRejectedProject(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.Engine.BootstrapProject(env.Ctx, engine.NewProjectInput{Name: "Tiny", Description: "Short"})
	if !errors.Is(err, engine.ErrNotApproved) {
		t.Fatalf("expected not approved, got %v", err)
	}
	var approval *engine.ApprovalError
	if !errors.As(err, &approval) || approval.Evaluation.Approved {
		t.Fatalf("expected approval error, got %T", err)
	}
	run, err := env.Engine.Repo.GetRun(env.Ctx, out.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != domain.RunFailed || run.ResultSummary != approval.Evaluation.Rationale {
		t.Fatalf("unexpected run %+v", run)
	}
	projects, err := env.Engine.Repo.ListProjects(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 0 {
		t.Fatalf("rejected project was created")
	}
	if countEvents(t, env, domain.EventWorkflowCompleted) != 1 || countEvents(t, env, domain.EventWorkflowTriggered) != 1 {
		t.Fatalf("expected trigger and completion events")
	}
	env.assertRunInvariant(t)
}

func TestBootstrapCreatesAndAssignsTasks(t *testing.T) {
	env := newTestEnv(t)
	env.addEmployee(t, "Ada", domain.RoleDeveloper, 0)
	env.addEmployee(t, "Grace", domain.RoleDesigner, 0.3)
	env.addEmployee(t, "Pat", domain.RolePM, 0)

	out, err := env.Engine.BootstrapProject(env.Ctx, engine.NewProjectInput{
		Name:        "Recipes",
		Description: "A social platform where users share their favourite recipes",
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	// Four MVP features from the rules: auth, dashboard, profile, sharing.
	if out.TasksCreated != 16 || out.TasksAssigned != 16 {
		t.Fatalf("expected 16 tasks created and assigned, got %+v", out)
	}
	if out.Project.Status != domain.ProjectPlanning || out.Project.Priority != 6 {
		t.Fatalf("unexpected project %+v", out.Project)
	}
	tasks, err := env.Engine.Repo.TasksByProject(env.Ctx, out.ProjectID)
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range tasks {
		if task.Status != domain.TaskTodo || task.AssigneeID == nil {
			t.Fatalf("task not ready: %+v", task)
		}
		if task.AssigneeName == "Pat" {
			t.Fatalf("PM should not get tasks")
		}
	}
	emps, err := env.Engine.Repo.ListEmployees(env.Ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range emps {
		if e.WorkloadScore < 0 || e.WorkloadScore > 1 {
			t.Fatalf("workload out of range: %+v", e)
		}
	}
	run, err := env.Engine.Repo.GetRun(env.Ctx, out.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != domain.RunCompleted || !strings.HasPrefix(run.ResultSummary, "Project created: Recipes.") {
		t.Fatalf("unexpected run %+v", run)
	}
	if !strings.Contains(run.Metadata, `"name":"Recipes"`) {
		t.Fatalf("metadata %q", run.Metadata)
	}
	if countEvents(t, env, domain.EventTaskCreated) != 16 || countEvents(t, env, domain.EventTaskUpdated) != 16 || countEvents(t, env, domain.EventProjectCreated) != 1 {
		t.Fatalf("missing task or project events")
	}
	env.assertRunInvariant(t)
}

func TestBootstrapRequiresName(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.BootstrapProject(env.Ctx, engine.NewProjectInput{}); err == nil {
		t.Fatalf("expected validation error")
	}
	runs, _ := env.Engine.Repo.ListRuns(env.Ctx, "", "", 10)
	if len(runs) != 0 {
		t.Fatalf("validation failure must not open a run")
	}
}

var errBoom = errors.New("boom")

type flakyLedger struct {
	engine.Ledger
	failStatus string
	failEvent  string
}

func (l flakyLedger) UpdateRunStatus(ctx context.Context, id, status, summary string) (domain.WorkflowRun, error) {
	if status == l.failStatus {
		return domain.WorkflowRun{}, errBoom
	}
	return l.Ledger.UpdateRunStatus(ctx, id, status, summary)
}

func (l flakyLedger) LogEvent(ctx context.Context, evtType, kind, id string, payload events.EventPayload) (domain.Event, error) {
	if evtType == l.failEvent {
		return domain.Event{}, errBoom
	}
	return l.Ledger.LogEvent(ctx, evtType, kind, id, payload)
}

func TestFailedTransitionErrorIsReturnedAsIs(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Ledger = flakyLedger{Ledger: env.Engine.Ledger, failStatus: domain.RunFailed}
	_, err := env.Engine.BootstrapProject(env.Ctx, engine.NewProjectInput{Name: "Tiny", Description: "Short"})
	if err != errBoom {
		t.Fatalf("expected the ledger error unmodified, got %v", err)
	}
}

func TestStepFailureKeepsEarlierSideEffects(t *testing.T) {
	env := newTestEnv(t)
	env.addEmployee(t, "Ada", domain.RoleDeveloper, 0)
	env.Engine.Ledger = flakyLedger{Ledger: env.Engine.Ledger, failEvent: domain.EventTaskCreated}
	out, err := env.Engine.BootstrapProject(env.Ctx, engine.NewProjectInput{
		Name: "Recipes", Description: "A platform where users share their favourite recipes",
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected step failure, got %v", err)
	}
	run, err := env.Engine.Repo.GetRun(env.Ctx, out.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != domain.RunFailed || run.FinishedAt == nil || run.ResultSummary != errBoom.Error() {
		t.Fatalf("unexpected run %+v", run)
	}
	if _, err := env.Engine.Repo.GetProject(env.Ctx, out.ProjectID); err != nil {
		t.Fatalf("project should survive the failed run: %v", err)
	}
	env.assertRunInvariant(t)
}

func TestDailyStandupSeedsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.addEmployee(t, "Ada", domain.RoleDeveloper, 0)
	env.addEmployee(t, "Grace", domain.RoleQA, 0)
	day := time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC)

	out, err := env.Engine.RunDailyStandup(env.Ctx, engine.StandupInput{Date: day})
	if err != nil {
		t.Fatal(err)
	}
	if out.StandupsCollected != 2 || out.StandupsCreated != 2 {
		t.Fatalf("unexpected first run %+v", out)
	}
	if !strings.Contains(out.FormattedSummary, "📊 *Daily Summary - March 8, 2024*") || !strings.Contains(out.DailySummary, "2 standups collected") {
		t.Fatalf("unexpected summary %+v", out)
	}
	if out.Summary != "Summary: 2 standups collected today." {
		t.Fatalf("narrative %q", out.Summary)
	}
	out, err = env.Engine.RunDailyStandup(env.Ctx, engine.StandupInput{Date: day})
	if err != nil {
		t.Fatal(err)
	}
	if out.StandupsCollected != 2 || out.StandupsCreated != 0 {
		t.Fatalf("unexpected second run %+v", out)
	}
	if countEvents(t, env, domain.EventStandupSubmitted) != 2 {
		t.Fatalf("expected 2 standup events")
	}
	env.assertRunInvariant(t)
}

func TestWeeklyReportWindow(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.Repo.InsertProject(env.Ctx, domain.Project{Name: "Live", Status: domain.ProjectActive})
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range []domain.Task{
		{Title: "inside", Status: domain.TaskDone, UpdatedAt: "2024-03-05T10:00:00Z"},
		{Title: "before", Status: domain.TaskDone, UpdatedAt: "2024-02-20T10:00:00Z"},
		{Title: "stuck", Status: domain.TaskBlocked},
	} {
		task.ProjectID = p.ID
		if _, err := env.Engine.Repo.InsertTask(env.Ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	out, err := env.Engine.RunWeeklyReport(env.Ctx, engine.WeeklyInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.CompletedTasks != 1 || out.OngoingProjects != 1 || out.BlockedItems != 1 {
		t.Fatalf("unexpected report %+v", out)
	}
	if !strings.HasPrefix(out.Summary, "Weekly summary:") || !strings.Contains(out.Summary, "⚠️") {
		t.Fatalf("summary %q", out.Summary)
	}
	run, _ := env.Engine.Repo.GetRun(env.Ctx, out.RunID)
	if !strings.Contains(run.Metadata, "2024-03-01T12:00:00Z") {
		t.Fatalf("window not recorded: %s", run.Metadata)
	}
}

func TestReleasePrepUnknownProject(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.Engine.PrepareRelease(env.Ctx, engine.ReleaseInput{ProjectID: "nope", Version: "1.0.0"})
	if !errors.Is(err, engine.ErrProjectNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	run, _ := env.Engine.Repo.GetRun(env.Ctx, out.RunID)
	if run.Status != domain.RunFailed || run.ResultSummary != "project not found: nope" {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestReleasePrep(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.Repo.InsertProject(env.Ctx, domain.Project{Name: "Shop", Status: domain.ProjectActive})
	if err != nil {
		t.Fatal(err)
	}
	for i, status := range []string{domain.TaskDone, domain.TaskDone, domain.TaskDone, domain.TaskDone, domain.TaskInProgress} {
		if _, err := env.Engine.Repo.InsertTask(env.Ctx, domain.Task{ProjectID: p.ID, Title: "Item " + string(rune('A'+i)), Status: status}); err != nil {
			t.Fatal(err)
		}
	}
	out, err := env.Engine.PrepareRelease(env.Ctx, engine.ReleaseInput{ProjectID: p.ID, Version: "2.0.0"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Quality.QualityScore != 80 || !out.Quality.ReadyForRelease {
		t.Fatalf("unexpected quality %+v", out.Quality)
	}
	if !strings.HasPrefix(out.ReleaseNotes, "# Shop v2.0.0") || !strings.Contains(out.ReleaseNotes, "2024-03-08") || len(out.Changelog) != 4 {
		t.Fatalf("unexpected notes %+v", out)
	}
	env.assertRunInvariant(t)
}

func TestSetTaskStatusRecordsEvents(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.Repo.InsertProject(env.Ctx, domain.Project{Name: "Board", Status: domain.ProjectActive})
	if err != nil {
		t.Fatal(err)
	}
	task, err := env.Engine.Repo.InsertTask(env.Ctx, domain.Task{ProjectID: p.ID, Title: "Ship it", Status: domain.TaskReview})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetTaskStatus(env.Ctx, task.ID, domain.TaskTodo, false); err == nil {
		t.Fatal("expected REVIEW -> TODO to be rejected")
	}
	if _, err := env.Engine.SetTaskStatus(env.Ctx, task.ID, "BANANA", true); err == nil {
		t.Fatal("expected an unknown status to be rejected with force")
	}
	if countEvents(t, env, domain.EventTaskUpdated) != 0 {
		t.Fatal("rejected status recorded an event")
	}
	done, err := env.Engine.SetTaskStatus(env.Ctx, task.ID, domain.TaskDone, false)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != domain.TaskDone {
		t.Fatalf("status %s", done.Status)
	}
	if countEvents(t, env, domain.EventTaskUpdated) != 1 || countEvents(t, env, domain.EventTaskCompleted) != 1 {
		t.Fatal("expected update and completion events")
	}
	if _, err := env.Engine.SetTaskStatus(env.Ctx, task.ID, domain.TaskDone, false); err != nil {
		t.Fatal(err)
	}
	if countEvents(t, env, domain.EventTaskUpdated) != 1 {
		t.Fatal("no-op transition recorded an event")
	}
}
