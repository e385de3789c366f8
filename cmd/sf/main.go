package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"studioflow/internal/app"
	"studioflow/internal/config"
	"studioflow/internal/domain"
	"studioflow/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sf",
	Short: "Studioflow CLI",
	Long: `Studioflow runs the studio's workflows: bootstrapping projects from a client
brief, daily standups, weekly reports and release preparation.
- Workflows: each run is recorded in the run ledger with its outcome.
- Decision units: every judgement asks the generation backend first and falls
  back to deterministic rules, so runs work without credentials.
- Integrations: GitHub, Google Calendar, ClickUp, Telegram and WhatsApp answer
  with simulated data when not configured.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("STUDIOFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (defaults to ./studioflow.yaml when present)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log integration and generation warnings")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(simulateNewProjectCmd())
	rootCmd.AddCommand(runDailyStandupCmd())
	rootCmd.AddCommand(runWeeklyReportCmd())
	rootCmd.AddCommand(runReleasePrepCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(nudgeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(employeesCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(integrationsCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, chat polling and outbound webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			logger := log.New(os.Stderr, "", log.LstdFlags)
			ctx := cmd.Context()
			rt, err := app.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			handler, err := server.New(server.Config{
				Runtime:  rt,
				BasePath: cfg.Server.BasePath,
				Auth:     server.AuthConfig{JWTSecret: cfg.Server.JWTSecret, Logger: logger},
			})
			if err != nil {
				return err
			}
			if cfg.Telegram.Polling {
				if err := rt.Telegram.StartPolling(ctx); err != nil {
					return err
				}
			}
			if path := viper.GetString("config"); path != "" {
				go func() {
					if err := rt.WatchConfig(ctx, path); err != nil {
						logger.Printf("warn: config watch stopped: %v", err)
					}
				}()
			}
			server.StartWebhookDispatcher(ctx, rt.Engine.Repo, cfg.Webhooks, logger)

			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving studioflow API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides server.base_path)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var roles []string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := server.SignToken(cfg.Server.JWTSecret, subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (who is calling)")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "roles to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()
			if viper.GetBool("json") {
				return printJSON(redacted)
			}
			out, err := redacted.ToYAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	})
	var file string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = viper.GetString("config")
			}
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			cfg, err := config.FromFile(file)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Printf("%s %s is valid (env %s)\n", color.GreenString("✓"), file, cfg.Env)
			return nil
		},
	}
	validate.Flags().StringVar(&file, "file", "", "config file to validate")
	cfgCmd.AddCommand(validate)
	return cfgCmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetString("config"))
}

// cliLogger discards output unless --verbose is set.
func cliLogger() *log.Logger {
	if viper.GetBool("verbose") {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := app.Open(ctx, cfg, cliLogger())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func statusColor(status string) string {
	switch status {
	case domain.RunCompleted, domain.TaskDone:
		return color.GreenString(status)
	case domain.RunFailed, domain.TaskBlocked:
		return color.RedString(status)
	case domain.RunRunning, domain.TaskInProgress, domain.TaskReview:
		return color.YellowString(status)
	default:
		return status
	}
}

func runLine(runID string, err error) {
	if err != nil {
		if runID != "" {
			fmt.Printf("%s run %s failed\n", color.RedString("✗"), runID)
		}
		return
	}
	fmt.Printf("%s run %s completed\n", color.GreenString("✓"), runID)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
