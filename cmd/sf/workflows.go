package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"studioflow/internal/agents"
	"studioflow/internal/app"
	"studioflow/internal/chat"
	"studioflow/internal/engine"
)

func simulateNewProjectCmd() *cobra.Command {
	var name, description, clientName, clientEmail, company, requirements string
	cmd := &cobra.Command{
		Use:   "simulate:new-project",
		Short: "Bootstrap a project from a client brief",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				in := engine.NewProjectInput{Name: name, Description: description}
				if clientName != "" || clientEmail != "" || company != "" || requirements != "" {
					in.Client = &agents.ClientInfo{Name: clientName, Email: clientEmail, Company: company, Requirements: requirements}
				}
				res, err := rt.Engine.BootstrapProject(ctx, in)
				runLine(res.RunID, err)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("project %s (%s)\n", res.Project.Name, res.ProjectID)
				fmt.Printf("tasks: %d created, %d assigned\n", res.TasksCreated, res.TasksAssigned)
				fmt.Println(res.Summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "E-commerce Platform", "project name")
	cmd.Flags().StringVar(&description, "description",
		"A comprehensive online store with product catalog, shopping cart, user authentication, payment processing and an admin dashboard for managing inventory and orders",
		"client brief")
	cmd.Flags().StringVar(&clientName, "client-name", "", "client contact name")
	cmd.Flags().StringVar(&clientEmail, "client-email", "", "client contact email")
	cmd.Flags().StringVar(&company, "company", "", "client company")
	cmd.Flags().StringVar(&requirements, "requirements", "", "extra client requirements")
	return cmd
}

func runDailyStandupCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "run:daily-standup",
		Short: "Collect standups and summarize the day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				day, err := parseDay(date, rt.Engine.Now())
				if err != nil {
					return err
				}
				res, err := rt.Engine.RunDailyStandup(ctx, engine.StandupInput{Date: day})
				runLine(res.RunID, err)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("standups: %d collected, %d created\n\n", res.StandupsCollected, res.StandupsCreated)
				fmt.Println(res.FormattedSummary)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to run for, YYYY-MM-DD (default today)")
	return cmd
}

func runWeeklyReportCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "run:weekly-report",
		Short: "Report on a week of work",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var in engine.WeeklyInput
				var err error
				if in.WeekStart, err = parseDay(from, time.Time{}); err != nil {
					return err
				}
				if in.WeekEnd, err = parseDay(to, time.Time{}); err != nil {
					return err
				}
				res, err := rt.Engine.RunWeeklyReport(ctx, in)
				runLine(res.RunID, err)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("completed %d, ongoing projects %d, blocked %d\n\n", res.CompletedTasks, res.OngoingProjects, res.BlockedItems)
				fmt.Println(res.Summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "window start, YYYY-MM-DD (default seven days ago)")
	cmd.Flags().StringVar(&to, "to", "", "window end, YYYY-MM-DD (default now)")
	return cmd
}

func runReleasePrepCmd() *cobra.Command {
	var projectID, version string
	cmd := &cobra.Command{
		Use:   "run:release-prep",
		Short: "Assess quality and write release notes for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.PrepareRelease(ctx, engine.ReleaseInput{ProjectID: projectID, Version: version})
				runLine(res.RunID, err)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				ready := color.RedString("not ready")
				if res.Quality.ReadyForRelease {
					ready = color.GreenString("ready")
				}
				fmt.Printf("quality score %d/100, %s\n", res.Quality.QualityScore, ready)
				fmt.Println(res.QualityAssessment)
				fmt.Println()
				fmt.Println(res.ReleaseNotes)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&version, "version", "", "release version")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func summaryCmd() *cobra.Command {
	var date string
	var send bool
	var chats []string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the daily summary, optionally sending it to chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				day, err := parseDay(date, rt.Engine.Now())
				if err != nil {
					return err
				}
				if !send {
					s, err := rt.Engine.DailySummary(ctx, day)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(s)
					}
					fmt.Println(s.FormattedSummary)
					return nil
				}
				s, sent, err := rt.SendDailySummary(ctx, day, chats)
				if s.FormattedSummary != "" {
					fmt.Println(s.FormattedSummary)
				}
				if len(sent) > 0 {
					fmt.Printf("%s sent to %s\n", color.GreenString("✓"), strings.Join(sent, ", "))
				} else if err == nil {
					fmt.Println(color.YellowString("no summary chats configured"))
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to summarize, YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&send, "send", false, "send the summary to chat")
	cmd.Flags().StringSliceVar(&chats, "chat", nil, "chat ids to send to (default telegram.chat_ids)")
	return cmd
}

func nudgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nudge",
		Short: "Remind people about overdue tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.NudgeLateTasks(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Println(res.Summary)
				return nil
			})
		},
	}
}

// parseDay reads a YYYY-MM-DD flag; an empty value yields def.
func parseDay(raw string, def time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	d, err := time.ParseInLocation(chat.DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return d, nil
}
