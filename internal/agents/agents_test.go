package agents_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"testing"
	"time"

	"studioflow/internal/agents"
	"studioflow/internal/domain"
	"studioflow/internal/llm"
)

func quiet() agents.Base {
	return agents.Base{Logger: log.New(io.Discard, "", 0)}
}

func TestEvaluatorRulesKeepPriorityInRange(t *testing.T) {
	cases := []agents.EvaluationInput{
		{Name: "empty"},
		{Name: "short", Description: "Short"},
		{Name: "full", Description: "A marketplace for local bakeries to sell surplus bread", Goals: []string{"launch"},
			Market: &agents.MarketInfo{TargetAudience: "bakeries", MarketSize: "large"}},
	}
	for _, in := range cases {
		ev, err := agents.Evaluator{Base: quiet()}.Evaluate(context.Background(), in)
		if err != nil {
			t.Fatalf("%s: %v", in.Name, err)
		}
		if ev.Priority < 1 || ev.Priority > 10 {
			t.Fatalf("%s: priority %d out of range", in.Name, ev.Priority)
		}
		if ev.Rationale == "" {
			t.Fatalf("%s: empty rationale", in.Name)
		}
	}
}

func TestEvaluatorRejectsShortDescription(t *testing.T) {
	ev, _ := agents.Evaluator{Base: quiet()}.Evaluate(context.Background(), agents.EvaluationInput{Name: "x", Description: "Short"})
	if ev.Approved {
		t.Fatalf("expected rejection")
	}
	// 18 characters but 24 bytes.
	ev, _ = agents.Evaluator{Base: quiet()}.Evaluate(context.Background(), agents.EvaluationInput{Name: "x", Description: "Çiçek üçgeni şöyle"})
	if ev.Approved {
		t.Fatalf("expected rejection of a short multibyte description")
	}
	ev, _ = agents.Evaluator{Base: quiet()}.Evaluate(context.Background(), agents.EvaluationInput{
		Name: "x", Description: "A long enough description of the work", Goals: []string{"ship"},
	})
	if !ev.Approved || ev.Priority != 6 {
		t.Fatalf("expected approval with priority 6, got %+v", ev)
	}
}

func TestEvaluatorUsesGeneratedAnswer(t *testing.T) {
	gen := llm.Static("Sure! ```json\n{\"approved\": false, \"priority\": 42, \"rationale\": \"not {now}\"}\n```")
	ev, _ := agents.Evaluator{Base: agents.Base{Generator: gen}}.Evaluate(context.Background(), agents.EvaluationInput{
		Name: "x", Description: "A long enough description of the work",
	})
	if ev.Approved || ev.Priority != 10 || ev.Rationale != "not {now}" {
		t.Fatalf("unexpected evaluation %+v", ev)
	}
}

func TestEvaluatorFallsBackOnBadOutput(t *testing.T) {
	for _, text := range []string{
		"no json here",
		`{"approved": true}`,
		`{"approved": "yes", "priority": 3, "rationale": "ok"}`,
		llm.Placeholder("prompt"),
	} {
		ev, _ := agents.Evaluator{Base: agents.Base{Generator: llm.Static(text)}}.Evaluate(context.Background(), agents.EvaluationInput{
			Name: "x", Description: "Short",
		})
		if ev.Approved || !strings.HasPrefix(ev.Rationale, "Project not approved") {
			t.Fatalf("%q: expected rule-based rejection, got %+v", text, ev)
		}
	}
}

func TestDecisionRecoversFromPanic(t *testing.T) {
	gen := llm.Func(func(context.Context, llm.Request) string { panic("boom") })
	ev, err := agents.Evaluator{Base: agents.Base{Generator: gen}}.Evaluate(context.Background(), agents.EvaluationInput{Name: "x"})
	if err != nil || ev.Approved {
		t.Fatalf("expected fallback, got %+v %v", ev, err)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`prefix {"a": "}"} suffix`:         `{"a": "}"}`,
		`[1, [2, 3]] and {"b": 1}`:          `[1, [2, 3]]`,
		`{"a": "say \"{\""}`:                `{"a": "say \"{\""}`,
		`nothing`:                           ``,
		`{"unbalanced": [}`:                 ``,
		`broken { then {"ok": true}`:        `{"ok": true}`,
		"```json\n{\"x\": {\"y\": 2}}\n```": `{"x": {"y": 2}}`,
	}
	for in, want := range cases {
		if got := agents.ExtractJSON(in); got != want {
			t.Fatalf("ExtractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBriefRules(t *testing.T) {
	b, _ := agents.BriefRefiner{Base: quiet()}.Refine(context.Background(), agents.BriefInput{
		RawBrief: "We need an MVP mobile app with a backend API so users can order coffee",
		Client:   &agents.ClientInfo{Name: "Ada", Company: "Beans"},
	})
	if !strings.HasPrefix(b.RefinedDescription, "For Ada (Beans): ") {
		t.Fatalf("description %q", b.RefinedDescription)
	}
	if len(b.Goals) != 2 || len(b.Requirements) != 2 || b.EstimatedScope != agents.ScopeSmall {
		t.Fatalf("unexpected brief %+v", b)
	}
	b, _ = agents.BriefRefiner{Base: quiet()}.Refine(context.Background(), agents.BriefInput{RawBrief: "a comprehensive " + strings.Repeat("word ", 60)})
	if b.EstimatedScope != agents.ScopeLarge || b.Goals[0] != "Deliver the project goals" {
		t.Fatalf("unexpected brief %+v", b)
	}
}

func TestBriefRulesTurkishKeywords(t *testing.T) {
	b, _ := agents.BriefRefiner{Base: quiet()}.Refine(context.Background(), agents.BriefInput{
		RawBrief: "Kullanıcıların ürün satışı yapabildiği mobil uygulama ve tasarım",
	})
	wantGoals := []string{"Optimize the user experience", "Grow revenue"}
	wantReqs := []string{"Mobile application development", "UI/UX design"}
	if strings.Join(b.Goals, "|") != strings.Join(wantGoals, "|") || strings.Join(b.Requirements, "|") != strings.Join(wantReqs, "|") {
		t.Fatalf("unexpected brief %+v", b)
	}
	b, _ = agents.BriefRefiner{Base: quiet()}.Refine(context.Background(), agents.BriefInput{RawBrief: "kapsamlı " + strings.Repeat("kelime ", 60)})
	if b.EstimatedScope != agents.ScopeLarge {
		t.Fatalf("expected large scope, got %s", b.EstimatedScope)
	}
	plan, _ := agents.FeaturePlanner{Base: quiet()}.Plan(context.Background(), agents.PlanInput{
		ProjectID: "p1", Description: "Sosyal paylaşım, mesajlaşma ve ödeme",
	})
	if len(plan.Features) != 7 {
		t.Fatalf("expected 7 features, got %d", len(plan.Features))
	}
}

func TestFeaturePlannerRules(t *testing.T) {
	plan, _ := agents.FeaturePlanner{Base: quiet()}.Plan(context.Background(), agents.PlanInput{
		ProjectID: "p1", Description: "A social app with chat and payments",
	})
	if len(plan.Features) != 7 {
		t.Fatalf("expected 7 features, got %d", len(plan.Features))
	}
	for _, f := range plan.MVPFeatures {
		if f.Priority > 2 {
			t.Fatalf("mvp feature %s has priority %d", f.Name, f.Priority)
		}
	}
	if len(plan.MVPFeatures) != 6 {
		t.Fatalf("expected 6 mvp features, got %d", len(plan.MVPFeatures))
	}
}

func TestFeaturePlannerNeverEmptyMVP(t *testing.T) {
	gen := llm.Static(`[{"name":"A","priority":4},{"name":"B","priority":5},{"name":"C","priority":3},{"name":"D","priority":4}]`)
	plan, _ := agents.FeaturePlanner{Base: agents.Base{Generator: gen}}.Plan(context.Background(), agents.PlanInput{ProjectID: "p1"})
	if len(plan.Features) != 4 || len(plan.MVPFeatures) != 3 || plan.MVPFeatures[0].Name != "A" {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestArchitectureRules(t *testing.T) {
	arch, _ := agents.ArchitectureAdvisor{Base: quiet()}.Advise(context.Background(), agents.ArchitectureInput{
		ProjectID: "p1",
		Features: []agents.Feature{
			{Name: "Messaging", Description: "Real-time chat"},
			{Name: "Payments", Description: "Card payment"},
		},
	})
	if arch.Architecture != "Event-driven services" {
		t.Fatalf("architecture %q", arch.Architecture)
	}
	joined := strings.Join(arch.TechStack, ",")
	for _, want := range []string{"WebSocket", "Redis", "Stripe API", "React"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("tech stack %v missing %s", arch.TechStack, want)
		}
	}
	if len(arch.Constraints) != 2 {
		t.Fatalf("constraints %v", arch.Constraints)
	}
}

func TestBreakdownIsProportionalAndStable(t *testing.T) {
	for _, f := range []agents.Feature{{Name: "Login", EstimatedHours: 16}, {Name: "Search", EstimatedHours: 33}, {Name: "Misc"}} {
		first := agents.BreakdownFeature(f)
		second := agents.BreakdownFeature(f)
		if len(first) != 4 {
			t.Fatalf("expected 4 subtasks, got %d", len(first))
		}
		want := f.EstimatedHours
		if want == 0 {
			want = agents.DefaultFeatureHours
		}
		var sum float64
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("breakdown not stable: %+v vs %+v", first[i], second[i])
			}
			sum += first[i].EstimateHours
		}
		if math.Abs(sum-want) > 0.05 {
			t.Fatalf("%s: subtasks sum to %v, want %v", f.Name, sum, want)
		}
		if first[0].Title != f.Name+" - Design" || first[3].Title != f.Name+" - Test" {
			t.Fatalf("titles %q %q", first[0].Title, first[3].Title)
		}
	}
}

type memStore struct {
	employees  []domain.Employee
	standups   []domain.StandupEntry
	tasks      map[string]*domain.Task
	order      []string
	projects   []domain.Project
	failAssign bool
	seq        int
}

func newMemStore() *memStore {
	return &memStore{tasks: map[string]*domain.Task{}}
}

func (m *memStore) InsertTask(_ context.Context, t domain.Task) (domain.Task, error) {
	m.seq++
	t.ID = fmt.Sprintf("t%d", m.seq)
	m.tasks[t.ID] = &t
	m.order = append(m.order, t.ID)
	return t, nil
}

func (m *memStore) ActiveEmployees(context.Context) ([]domain.Employee, error) {
	var out []domain.Employee
	for _, e := range m.employees {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) StandupsByDate(_ context.Context, date string) ([]domain.StandupEntry, error) {
	var out []domain.StandupEntry
	for _, s := range m.standups {
		if s.Date == date {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) InsertStandup(_ context.Context, s domain.StandupEntry) (domain.StandupEntry, error) {
	m.seq++
	s.ID = fmt.Sprintf("s%d", m.seq)
	m.standups = append(m.standups, s)
	return s, nil
}

func (m *memStore) AssignTask(_ context.Context, taskID, employeeID string) error {
	if m.failAssign {
		return fmt.Errorf("database is locked")
	}
	t, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}
	t.AssigneeID = &employeeID
	return nil
}

func (m *memStore) UpdateEmployeeWorkload(_ context.Context, id string, w float64) (float64, error) {
	for i := range m.employees {
		if m.employees[i].ID == id {
			m.employees[i].WorkloadScore = math.Min(1, math.Max(0, w))
			return m.employees[i].WorkloadScore, nil
		}
	}
	return 0, fmt.Errorf("employee %s not found", id)
}

func (m *memStore) TasksByAssignee(_ context.Context, id string) ([]domain.Task, error) {
	var out []domain.Task
	for _, tid := range m.order {
		if t := m.tasks[tid]; t.AssigneeID != nil && *t.AssigneeID == id {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) TasksByStatus(_ context.Context, status string) ([]domain.Task, error) {
	var out []domain.Task
	for _, tid := range m.order {
		if t := m.tasks[tid]; t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) TasksUpdatedBetween(_ context.Context, from, to time.Time) ([]domain.Task, error) {
	var out []domain.Task
	for _, tid := range m.order {
		t := m.tasks[tid]
		ts, err := time.Parse(time.RFC3339, t.UpdatedAt)
		if err != nil {
			continue
		}
		if !ts.Before(from) && !ts.After(to) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) ListProjects(_ context.Context, statuses ...string) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range m.projects {
		for _, s := range statuses {
			if p.Status == s {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (m *memStore) addTasks(n int, status, updatedAt string) {
	for i := 0; i < n; i++ {
		m.InsertTask(context.Background(), domain.Task{Title: fmt.Sprintf("%s task %d", status, i), Status: status, UpdatedAt: updatedAt})
	}
}

func TestTaskPlannerStoresTodoTasks(t *testing.T) {
	store := newMemStore()
	out, err := agents.TaskPlanner{Base: quiet(), Store: store}.Breakdown(context.Background(), agents.BreakdownInput{
		ProjectID: "p1",
		Features:  []agents.Feature{{Name: "A", EstimatedHours: 10}, {Name: "B"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.TasksCreated != 8 || len(out.TaskIDs) != 8 {
		t.Fatalf("expected 8 tasks, got %+v", out)
	}
	for _, task := range out.Tasks {
		if task.Status != domain.TaskTodo || task.ProjectID != "p1" || task.EstimateHours == nil {
			t.Fatalf("unexpected task %+v", task)
		}
	}
}

func TestAssignTasksRoundRobin(t *testing.T) {
	store := newMemStore()
	store.employees = []domain.Employee{
		{ID: "busy", Name: "Busy", Role: domain.RoleDeveloper, IsActive: true, WorkloadScore: 0.95},
		{ID: "pm", Name: "Pam", Role: domain.RolePM, IsActive: true},
		{ID: "free", Name: "Free", Role: domain.RoleDesigner, IsActive: true, WorkloadScore: 0.2},
		{ID: "away", Name: "Away", Role: domain.RoleQA, IsActive: false},
		{ID: "qa", Name: "Quinn", Role: domain.RoleQA, IsActive: true, WorkloadScore: 0.5},
	}
	store.addTasks(7, domain.TaskTodo, "")
	ops := agents.Ops{Base: quiet(), Store: store}
	res, err := ops.AssignTasks(context.Background(), store.order)
	if err != nil {
		t.Fatal(err)
	}
	if res.Assigned != 7 {
		t.Fatalf("expected 7 assignments, got %d", res.Assigned)
	}
	want := []string{"free", "qa", "busy", "free", "qa", "busy", "free"}
	last := map[string]float64{}
	for i, a := range res.Assignments {
		if a.EmployeeID != want[i] {
			t.Fatalf("task %d assigned to %s, want %s", i, a.EmployeeID, want[i])
		}
		if a.Workload < last[a.EmployeeID] || a.Workload > 1 {
			t.Fatalf("workload for %s went %v -> %v", a.EmployeeID, last[a.EmployeeID], a.Workload)
		}
		last[a.EmployeeID] = a.Workload
	}
	for _, id := range store.order {
		if store.tasks[id].AssigneeID == nil {
			t.Fatalf("task %s unassigned", id)
		}
	}
	if math.Abs(last["free"]-0.5) > 1e-9 || last["busy"] != 1 {
		t.Fatalf("final workloads %v", last)
	}
}

func TestAssignTasksWithoutEligibleEmployees(t *testing.T) {
	store := newMemStore()
	store.employees = []domain.Employee{{ID: "pm", Role: domain.RolePM, IsActive: true}}
	store.addTasks(2, domain.TaskTodo, "")
	res, err := agents.Ops{Base: quiet(), Store: store}.AssignTasks(context.Background(), store.order)
	if err != nil || res.Assigned != 0 {
		t.Fatalf("expected no assignment, got %+v %v", res, err)
	}
}

func TestAssignTasksSurfacesStoreErrors(t *testing.T) {
	store := newMemStore()
	store.employees = []domain.Employee{{ID: "dev", Role: domain.RoleDeveloper, IsActive: true}}
	store.addTasks(1, domain.TaskTodo, "")
	store.failAssign = true
	if _, err := (agents.Ops{Base: quiet(), Store: store}).AssignTasks(context.Background(), store.order); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCollectStandupsSeedsMissing(t *testing.T) {
	store := newMemStore()
	store.employees = []domain.Employee{
		{ID: "a", Name: "A", IsActive: true},
		{ID: "b", Name: "B", IsActive: true},
		{ID: "c", Name: "C", IsActive: false},
	}
	store.standups = []domain.StandupEntry{{ID: "x", EmployeeID: "a", Date: "2024-03-04"}}
	day := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	res, err := agents.Ops{Base: quiet(), Store: store}.CollectStandups(context.Background(), day)
	if err != nil {
		t.Fatal(err)
	}
	if res.Collected != 2 || len(res.Created) != 1 || res.Created[0].EmployeeID != "b" {
		t.Fatalf("unexpected collection %+v", res)
	}
	res, _ = agents.Ops{Base: quiet(), Store: store}.CollectStandups(context.Background(), day)
	if len(res.Created) != 0 || res.Collected != 2 {
		t.Fatalf("second run should create nothing, got %+v", res)
	}
}

type recorder struct{ sent map[string]string }

func (r *recorder) Notify(_ context.Context, chatID, text string) error {
	r.sent[chatID] = text
	return nil
}

func TestNudgeLateTasks(t *testing.T) {
	store := newMemStore()
	store.employees = []domain.Employee{{ID: "a", Name: "Ada", IsActive: true, ChatID: "42"}}
	past, future := "2024-03-01T00:00:00Z", "2024-04-01T00:00:00Z"
	a := "a"
	store.InsertTask(context.Background(), domain.Task{Title: "late", Status: domain.TaskInProgress, AssigneeID: &a, DueDate: &past})
	store.InsertTask(context.Background(), domain.Task{Title: "done", Status: domain.TaskDone, AssigneeID: &a, DueDate: &past})
	store.InsertTask(context.Background(), domain.Task{Title: "soon", Status: domain.TaskTodo, AssigneeID: &a, DueDate: &future})
	rec := &recorder{sent: map[string]string{}}
	ops := agents.Ops{Base: quiet(), Store: store, Notifier: rec, Now: func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) }}
	res, err := ops.NudgeLateTasks(context.Background())
	if err != nil || res.NudgesSent != 1 {
		t.Fatalf("expected one nudge, got %+v %v", res, err)
	}
	msg := rec.sent["42"]
	if !strings.Contains(msg, "- late") || strings.Contains(msg, "- done") || strings.Contains(msg, "- soon") {
		t.Fatalf("nudge message %q", msg)
	}
}

func TestDailySummaryTruncatesBuckets(t *testing.T) {
	store := newMemStore()
	store.addTasks(12, domain.TaskDone, "2024-03-04T10:00:00Z")
	store.addTasks(7, domain.TaskTodo, "2024-03-01T10:00:00Z")
	store.addTasks(2, domain.TaskBlocked, "2024-03-01T10:00:00Z")
	store.addTasks(3, domain.TaskDone, "2024-03-03T10:00:00Z")
	store.projects = []domain.Project{{Status: domain.ProjectActive}, {Status: domain.ProjectPlanning}, {Status: domain.ProjectCompleted}}
	store.standups = []domain.StandupEntry{{EmployeeID: "a", Date: "2024-03-04"}, {EmployeeID: "a", Date: "2024-03-04"}}

	out, err := agents.Ops{Base: quiet(), Store: store}.DailySummary(context.Background(), time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	md := out.FormattedSummary
	if got := strings.Count(md, "• DONE task"); got != 10 {
		t.Fatalf("expected 10 completed titles, got %d\n%s", got, md)
	}
	if !strings.Contains(md, "…and 2 more") || !strings.Contains(md, "…and 2 more\n\n📋") {
		t.Fatalf("missing completed overflow line\n%s", md)
	}
	if strings.Count(md, "• TODO task") != 5 || !strings.Contains(md, "…and 2 more\n\n🚫") {
		t.Fatalf("pending bucket not truncated to 5\n%s", md)
	}
	if strings.Contains(md, "🚀") {
		t.Fatalf("started section should be omitted\n%s", md)
	}
	if !strings.Contains(md, "1 people submitted") || !strings.Contains(md, "📁 *Active projects*: 2") {
		t.Fatalf("standup or project counts wrong\n%s", md)
	}
	want := "Daily summary: 12 tasks completed, 7 pending, 2 blocked, 0 in progress. 2 standups collected."
	if out.Summary != want {
		t.Fatalf("plain summary %q", out.Summary)
	}
}

func TestQualityZeroTasks(t *testing.T) {
	gen := llm.Static(`{"assessment": "great", "testSuggestions": []}`)
	r, _ := agents.QualityAssessor{Base: agents.Base{Generator: gen}}.Assess(context.Background(), agents.QualityInput{})
	if r.QualityScore != 0 || r.ReadyForRelease {
		t.Fatalf("unexpected report %+v", r)
	}
}

func tasksWith(counts map[string]int) []domain.Task {
	var out []domain.Task
	for status, n := range counts {
		for i := 0; i < n; i++ {
			out = append(out, domain.Task{Title: status, Status: status})
		}
	}
	return out
}

func TestQualityReadiness(t *testing.T) {
	cases := []struct {
		counts map[string]int
		score  int
		ready  bool
	}{
		{map[string]int{domain.TaskDone: 10}, 100, true},
		{map[string]int{domain.TaskDone: 7, domain.TaskTodo: 3}, 70, true},
		{map[string]int{domain.TaskDone: 69, domain.TaskTodo: 31}, 69, false},
		{map[string]int{domain.TaskDone: 99, domain.TaskBlocked: 1}, 89, false},
		{map[string]int{domain.TaskDone: 1, domain.TaskBlocked: 1}, 0, false},
		{map[string]int{domain.TaskInProgress: 4}, 0, false},
	}
	for _, c := range cases {
		// A generator claiming readiness must not change the verdict.
		gen := llm.Static(`{"assessment": "ship it", "testSuggestions": ["none"]}`)
		r, _ := agents.QualityAssessor{Base: agents.Base{Generator: gen}}.Assess(context.Background(), agents.QualityInput{Tasks: tasksWith(c.counts)})
		if r.QualityScore != c.score || r.ReadyForRelease != c.ready {
			t.Fatalf("%v: got score %d ready %t", c.counts, r.QualityScore, r.ReadyForRelease)
		}
		if r.ReadyForRelease && (r.QualityScore < agents.ReleaseThreshold || c.counts[domain.TaskBlocked] > 0) {
			t.Fatalf("%v: ready without meeting the bar", c.counts)
		}
	}
}

func TestReleaseTemplate(t *testing.T) {
	tasks := []domain.Task{
		{Title: "Login", Description: "Email sign in", Status: domain.TaskDone},
		{Title: "Search", Status: domain.TaskDone},
		{Title: "Chat", Status: domain.TaskInProgress},
		{Title: "Later", Status: domain.TaskTodo},
	}
	out, _ := agents.ReleaseComposer{Base: quiet()}.Compose(context.Background(), agents.ReleaseInput{
		Project: domain.Project{Name: "Bakery"}, Version: "1.2.0", Tasks: tasks,
		Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	for _, want := range []string{"# Bakery v1.2.0", "**Release date:** 2024-05-01", "1. Login\n   - Email sign in", "2. Search", "- Chat", "2 new features"} {
		if !strings.Contains(out.ReleaseNotes, want) {
			t.Fatalf("release notes missing %q:\n%s", want, out.ReleaseNotes)
		}
	}
	if strings.Contains(out.ReleaseNotes, "Later") || len(out.Changelog) != 2 {
		t.Fatalf("unexpected notes %+v", out)
	}
}

func TestReleaseSkipsGeneratorWithoutDoneTasks(t *testing.T) {
	called := false
	gen := llm.Func(func(context.Context, llm.Request) string { called = true; return "# v1" })
	out, _ := agents.ReleaseComposer{Base: agents.Base{Generator: gen}}.Compose(context.Background(), agents.ReleaseInput{
		Project: domain.Project{Name: "P"}, Version: "1",
	})
	if called || !strings.Contains(out.ReleaseNotes, "## 📝 Notes") {
		t.Fatalf("expected template without generation, called=%t", called)
	}
}

func TestNarratorTemplates(t *testing.T) {
	n := agents.Narrator{Base: quiet()}
	weekly, _ := n.Weekly(context.Background(), agents.WeeklyStats{CompletedTasks: 3, BlockedItems: 1})
	if !strings.HasPrefix(weekly, "Weekly summary:\n- Completed tasks: 3") || !strings.Contains(weekly, "⚠️") {
		t.Fatalf("weekly %q", weekly)
	}
	standup, _ := n.Standup(context.Background(), 0)
	if !strings.Contains(standup, "No standups") {
		t.Fatalf("standup %q", standup)
	}
	n.Generator = llm.Static("  Great day.  ")
	standup, _ = n.Standup(context.Background(), 4)
	if standup != "Great day." {
		t.Fatalf("standup %q", standup)
	}
}
