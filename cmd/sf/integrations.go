package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"studioflow/internal/app"
	"studioflow/internal/integrations"
)

func integrationsCmd() *cobra.Command {
	ic := &cobra.Command{
		Use:     "integrations",
		Aliases: []string{"int"},
		Short:   "Call the external systems directly",
	}
	ic.AddCommand(commitsCmd(), issueCmd(), slotCmd(), scheduleCmd(), ticketsCmd(), ticketCreateCmd())
	return ic
}

func simulatedNote(simulated bool) {
	if simulated {
		fmt.Println(color.YellowString("(simulated: no credentials configured)"))
	}
}

func commitsCmd() *cobra.Command {
	var repoName string
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "commits",
		Short: "List recent commits of a repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				commits, err := rt.CodeHost.RecentCommits(ctx, repoName, rt.Engine.Now().Add(-since))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(commits)
				}
				_, sim := rt.CodeHost.(integrations.SimulatedCodeHost)
				simulatedNote(sim)
				tw := newTable(table.Row{"SHA", "Author", "Date", "Message"})
				for _, c := range commits {
					sha := c.SHA
					if len(sha) > 7 {
						sha = sha[:7]
					}
					tw.AppendRow(table.Row{sha, c.Author, c.Date.Format(time.RFC3339), truncate(c.Message, 60)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&repoName, "repo", "", "repository as owner/name")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "how far back to look")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

func issueCmd() *cobra.Command {
	var repoName, title, body string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "File an issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				issue, err := rt.CodeHost.CreateIssue(ctx, repoName, title, body)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(issue)
				}
				fmt.Printf("issue #%d %s\n", issue.Number, issue.URL)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&repoName, "repo", "", "repository as owner/name")
	cmd.Flags().StringVar(&title, "title", "", "issue title")
	cmd.Flags().StringVar(&body, "body", "", "issue body")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func slotCmd() *cobra.Command {
	var minutes int
	var attendees []string
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Find the first free working-hours slot this week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				slot, err := rt.Calendar.FindAvailableSlot(ctx, minutes, attendees)
				if err != nil {
					return err
				}
				if slot == nil {
					fmt.Println(color.YellowString("no free slot in the next seven days"))
					return nil
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"start": slot, "end": slot.Add(time.Duration(minutes) * time.Minute)})
				}
				fmt.Printf("%s - %s\n", slot.Format(time.RFC3339), slot.Add(time.Duration(minutes)*time.Minute).Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&minutes, "duration", 30, "meeting length in minutes")
	cmd.Flags().StringSliceVar(&attendees, "attendee", nil, "attendee emails")
	return cmd
}

func scheduleCmd() *cobra.Command {
	var title, start string
	var minutes int
	var attendees []string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Put a meeting on the calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var at time.Time
				if start == "" {
					slot, err := rt.Calendar.FindAvailableSlot(ctx, minutes, attendees)
					if err != nil {
						return err
					}
					if slot == nil {
						return fmt.Errorf("no free slot in the next seven days, pass --start")
					}
					at = *slot
				} else {
					var err error
					if at, err = time.Parse(time.RFC3339, start); err != nil {
						return fmt.Errorf("invalid --start %q, expected RFC 3339", start)
					}
				}
				evt, err := rt.Calendar.ScheduleEvent(ctx, title, at, at.Add(time.Duration(minutes)*time.Minute), attendees)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evt)
				}
				fmt.Printf("%s scheduled %q at %s (%s)\n", color.GreenString("✓"), evt.Title, evt.Start.Format(time.RFC3339), evt.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "meeting title")
	cmd.Flags().StringVar(&start, "start", "", "start time, RFC 3339 (default first free slot)")
	cmd.Flags().IntVar(&minutes, "duration", 30, "meeting length in minutes")
	cmd.Flags().StringSliceVar(&attendees, "attendee", nil, "attendee emails")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func ticketsCmd() *cobra.Command {
	var listID string
	var closed bool
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List tickets of a ClickUp list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				tickets, err := rt.Ticketing.GetTasks(ctx, listID, closed)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tickets)
				}
				_, sim := rt.Ticketing.(integrations.SimulatedTicketing)
				simulatedNote(sim)
				tw := newTable(table.Row{"ID", "Name", "Status", "Assignees"})
				for _, t := range tickets {
					tw.AppendRow(table.Row{t.ID, truncate(t.Name, 50), t.Status, len(t.Assignees)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&listID, "list", "", "ClickUp list id")
	cmd.Flags().BoolVar(&closed, "closed", false, "include closed tickets")
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

func ticketCreateCmd() *cobra.Command {
	var listID, name, description, status string
	var priority int
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Create a ticket, optionally moving it to a status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := rt.Ticketing.CreateTask(ctx, listID, integrations.NewTicket{Name: name, Description: description, Priority: priority})
				if err != nil {
					return err
				}
				if status != "" {
					if t, err = rt.Ticketing.UpdateTask(ctx, t.ID, integrations.TicketUpdate{Status: status}); err != nil {
						return err
					}
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Printf("ticket %s [%s] %s\n", t.ID, t.Status, t.URL)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&listID, "list", "", "ClickUp list id")
	cmd.Flags().StringVar(&name, "name", "", "ticket name")
	cmd.Flags().StringVar(&description, "description", "", "ticket description")
	cmd.Flags().StringVar(&status, "status", "", "status to move the ticket to")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority 1 (urgent) to 4 (low)")
	_ = cmd.MarkFlagRequired("list")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
