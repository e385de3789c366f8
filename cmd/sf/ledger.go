package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"studioflow/internal/app"
	"studioflow/internal/domain"
	"studioflow/internal/repo"
)

func runsCmd() *cobra.Command {
	runs := &cobra.Command{Use: "runs", Short: "Inspect the run ledger"}
	var runType, status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List workflow runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.Repo.ListRuns(ctx, strings.ToUpper(runType), strings.ToUpper(status), limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Type", "Status", "Started", "Finished", "Summary"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.Type, statusColor(r.Status), r.StartedAt, deref(r.FinishedAt), truncate(r.ResultSummary, 60)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&runType, "type", "", "run type (PROJECT_BOOTSTRAP, DAILY_STANDUP, WEEKLY_REPORT, RELEASE_PREP)")
	list.Flags().StringVar(&status, "status", "", "run status (RUNNING, COMPLETED, FAILED)")
	list.Flags().IntVar(&limit, "limit", 20, "number of runs")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a workflow run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				r, err := rt.Engine.Repo.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(r)
				}
				fmt.Printf("Run:      %s\n", r.ID)
				fmt.Printf("Type:     %s\n", r.Type)
				fmt.Printf("Status:   %s\n", statusColor(r.Status))
				fmt.Printf("Started:  %s\n", r.StartedAt)
				if r.FinishedAt != nil {
					fmt.Printf("Finished: %s\n", *r.FinishedAt)
				}
				if r.Metadata != "" {
					fmt.Printf("Metadata: %s\n", r.Metadata)
				}
				if r.ResultSummary != "" {
					fmt.Printf("\n%s\n", r.ResultSummary)
				}
				return nil
			})
		},
	}
	runs.AddCommand(list, show)
	return runs
}

func eventsCmd() *cobra.Command {
	evts := &cobra.Command{Use: "events", Short: "Inspect ledger events"}
	var n int
	var evtType, entityKind, entityID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "TS", "Type", "Entity", "Payload"})
				for _, e := range items {
					entity := e.EntityKind
					if e.EntityID != "" {
						entity += ":" + e.EntityID
					}
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, entity, truncate(e.Payload, 60)})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	tail.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	evts.AddCommand(tail)
	return evts
}

func employeesCmd() *cobra.Command {
	emps := &cobra.Command{Use: "employees", Short: "Manage the team"}
	var name, email, role, chatID string
	var inactive bool
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			role = strings.ToUpper(role)
			switch role {
			case domain.RoleDeveloper, domain.RoleDesigner, domain.RoleQA, domain.RolePM, domain.RoleManager:
			default:
				return fmt.Errorf("invalid role %q", role)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				e, err := rt.Engine.Repo.InsertEmployee(ctx, domain.Employee{
					Name: name, Email: email, Role: role, ChatID: chatID, IsActive: !inactive,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(e)
				}
				fmt.Printf("added %s (%s) as %s\n", e.Name, e.ID, e.Role)
				return nil
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "full name")
	add.Flags().StringVar(&email, "email", "", "email address")
	add.Flags().StringVar(&role, "role", domain.RoleDeveloper, "DEVELOPER, DESIGNER, QA, PM or MANAGER")
	add.Flags().StringVar(&chatID, "chat-id", "", "telegram chat id for reminders")
	add.Flags().BoolVar(&inactive, "inactive", false, "add without making the employee assignable")

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List employees",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.Repo.ListEmployees(ctx, !all)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Name", "Email", "Role", "Active", "Workload"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.Name, e.Email, e.Role, e.IsActive, fmt.Sprintf("%.2f", e.WorkloadScore)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include inactive employees")
	emps.AddCommand(add, list)
	return emps
}

func tasksCmd() *cobra.Command {
	tasks := &cobra.Command{Use: "tasks", Short: "Inspect and move tasks"}
	var projectID, status, assignee string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.Repo.ListTasks(ctx, repo.TaskFilters{
					ProjectID:  projectID,
					Status:     strings.ToUpper(status),
					AssigneeID: assignee,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Title", "Status", "Assignee", "Due"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, truncate(t.Title, 50), statusColor(t.Status), t.AssigneeName, deref(t.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&projectID, "project", "", "project id")
	list.Flags().StringVar(&status, "status", "", "TODO, IN_PROGRESS, REVIEW, DONE or BLOCKED")
	list.Flags().StringVar(&assignee, "assignee", "", "employee id")
	list.Flags().IntVar(&limit, "limit", 100, "number of tasks")

	var force bool
	setStatus := &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Move a task to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := rt.Engine.SetTaskStatus(ctx, args[0], strings.ToUpper(args[1]), force)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Printf("%s is now %s\n", t.Title, statusColor(t.Status))
				return nil
			})
		},
	}
	setStatus.Flags().BoolVar(&force, "force", false, "skip the lifecycle transition check")
	tasks.AddCommand(list, setStatus)
	return tasks
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
