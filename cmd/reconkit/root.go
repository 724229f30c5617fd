package reconkit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tldr-it-stepankutaj/reconkit/internal/app"
	"github.com/tldr-it-stepankutaj/reconkit/internal/console"
	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/logging"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules"
	"github.com/tldr-it-stepankutaj/reconkit/internal/storage"
	"github.com/tldr-it-stepankutaj/reconkit/internal/tui"
	"github.com/tldr-it-stepankutaj/reconkit/internal/workflow"
	"github.com/tldr-it-stepankutaj/reconkit/internal/workspace"
	"github.com/tldr-it-stepankutaj/reconkit/pkg/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "reconkit",
	Short: "Reconkit: modular OSINT reconnaissance console (CLI/TUI)",
	Long: "Reconkit keeps targets, groups and keys per workspace and runs reconnaissance modules against them. " +
		"Starts the interactive console by default, or the full-screen console with --tui.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := app.LoadEnvFile(".env"); err != nil {
			return err
		}
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(nil)
	},
}

func init() {
	// Persistent flags (available to all subcommands).
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("workspace", "./work", "Path to workspace root")
	rootCmd.PersistentFlags().String("database", "", "SQLite database path (default: <workspace>/reconkit.db)")
	rootCmd.PersistentFlags().Bool("tui", false, "Run in TUI mode")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text|json)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr, or <workspace>/logs in TUI mode)")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Timeout for outbound requests")

	// Bind flags to Viper.
	app.SetDefaults(viper.GetViper())
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))
	_ = viper.BindPFlag("tui", rootCmd.PersistentFlags().Lookup("tui"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	// Register subcommands.
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(modulesCmd)
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(versionCmd)
}

// Helper to create app context
func createAppContext() (app.Context, error) {
	v := viper.GetViper()
	cfg, err := app.LoadConfig(v)
	if err != nil {
		return app.Context{}, err
	}
	ws, err := workspace.Ensure(cfg.Workspace)
	if err != nil {
		return app.Context{}, err
	}
	logger, err := logging.Setup(cfg.Logging())
	if err != nil {
		return app.Context{}, err
	}
	app.WatchLogLevel(v, logger)
	return app.Context{
		Ctx:       context.Background(),
		Config:    cfg,
		Workspace: ws,
		Log:       logger,
	}, nil
}

// runSession wires the system, runs before (if any) against it, then hands the
// terminal to the console until the operator leaves.
func runSession(before func(sys *app.System) error) error {
	appCtx, err := createAppContext()
	if err != nil {
		return err
	}
	sys, err := app.Build(appCtx, app.NewRegistry(appCtx.Config.Timeout))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- sys.Run(ctx) }()

	var uiErr error
	if before != nil {
		uiErr = before(sys)
	}
	if uiErr == nil {
		if appCtx.Config.TUI {
			uiErr = tui.Run(ctx, sys, sys.Events())
		} else {
			fmt.Println("Type 'help' for commands, 'exit' to leave.")
			uiErr = console.New(os.Stdin, os.Stdout, sys, logging.Component(appCtx.Log, "cli")).Run(ctx, sys.Events())
		}
	}
	if errors.Is(uiErr, context.Canceled) {
		uiErr = nil
	}

	cancel()
	return errors.Join(uiErr, <-runErr, sys.Close())
}

// `init` subcommand to initialize the workspace layout and database.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize workspace structure and database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		ws, err := workspace.Ensure(cfg.Workspace)
		if err != nil {
			return err
		}
		store, err := storage.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		if err := store.Close(); err != nil {
			return err
		}
		fmt.Printf("Workspace ready at: %s\n", ws.Root)
		fmt.Printf("Database: %s\n", cfg.Database)
		return nil
	},
}

// `modules` subcommand: print the registered modules.
var modulesCmd = &cobra.Command{
	Use:   "modules [name]",
	Short: "List modules, or show the arguments of one module",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := app.NewRegistry(viper.GetDuration("timeout"))
		if len(args) == 1 {
			m, ok := registry.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown module %q", args[0])
			}
			fmt.Println(console.Render(event.ResponseModuleHelp{Module: modules.Info(m)}))
			return nil
		}
		all := registry.All()
		infos := make([]event.ModuleInfo, 0, len(all))
		for _, m := range all {
			infos = append(infos, modules.Info(m))
		}
		fmt.Println(console.Render(event.ResponseModules{Modules: infos}))
		return nil
	},
}

// `workflow` subcommand: scripted console sessions.
var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run scripted command sequences",
}

var workflowRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a workflow's commands, then continue in the console",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		file, _ := cmd.Flags().GetString("file")
		vars, _ := cmd.Flags().GetStringToString("var")

		var wf *workflow.Workflow
		var err error
		switch {
		case file != "":
			wf, err = workflow.LoadWorkflow(file)
			if err != nil {
				return fmt.Errorf("failed to load workflow: %w", err)
			}
		case name != "":
			var ok bool
			wf, ok = workflow.GetPredefinedWorkflow(name)
			if !ok {
				return fmt.Errorf("unknown workflow: %s (available: %s)", name, strings.Join(workflow.ListPredefinedWorkflows(), ", "))
			}
		default:
			return fmt.Errorf("workflow name or file is required")
		}
		if _, err := workflow.Plan(wf, vars); err != nil {
			return err
		}

		return runSession(func(sys *app.System) error {
			report, err := workflow.Execute(sys, wf, vars)
			if err != nil {
				return err
			}
			fmt.Printf("[+] Workflow %q: %d commands submitted\n", wf.Name, len(report.Submitted))
			return nil
		})
	},
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available predefined workflows",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Available workflows:")
		for _, name := range workflow.ListPredefinedWorkflows() {
			if wf, ok := workflow.GetPredefinedWorkflow(name); ok {
				fmt.Printf("  %s - %s\n", name, wf.Description)
			}
		}
	},
}

func init() {
	workflowRunCmd.Flags().String("name", "", "Predefined workflow name")
	workflowRunCmd.Flags().String("file", "", "Path to workflow YAML file")
	workflowRunCmd.Flags().StringToString("var", nil, "Workflow variable (key=value), repeatable")

	workflowCmd.AddCommand(workflowRunCmd)
	workflowCmd.AddCommand(workflowListCmd)
}

// `version` subcommand.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
