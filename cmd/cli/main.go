package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/toolsascode/gfm/internal/actions"
	"github.com/toolsascode/gfm/internal/backends/gremlin"
	"github.com/toolsascode/gfm/internal/config"
	"github.com/toolsascode/gfm/internal/diff"
	"github.com/toolsascode/gfm/internal/executor"
	"github.com/toolsascode/gfm/internal/generator"
	"github.com/toolsascode/gfm/internal/lock"
	"github.com/toolsascode/gfm/internal/logger"
	"github.com/toolsascode/gfm/internal/registry"
	"github.com/toolsascode/gfm/internal/schema"
	"github.com/toolsascode/gfm/internal/state"
)

var (
	logLevel  string
	logFormat string

	planModels  string
	planDir     string
	planGraph   string
	planApp     string
	planName    string
	planNoInput bool
	planCheck   bool
	planInitial bool

	applyGraph  string
	applyTo     string
	applyDryRun bool

	rollbackGraph  string
	rollbackTo     string
	rollbackSteps  int
	rollbackDryRun bool

	statusGraph string

	validateDir string
)

var rootCmd = &cobra.Command{
	Use:   "gfm",
	Short: "gfm - schema migrations for graph databases",
	Long: `gfm manages schema migrations for Gremlin-compatible graph databases.

YAML model definitions are diffed against the last planned snapshot
(schema.lock.yaml) to generate versioned Groovy migration scripts, which
the apply and rollback commands execute against the configured graphs.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup(logLevel, logFormat)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Diff the models against the schema lock and generate migrations",
	Long: `Plan loads the YAML models, diffs them against schema.lock.yaml and
writes one migration per changed app: the up and down Groovy scripts plus
a Go registration file. The lock file is refreshed to the planned state.

Changes that would null out existing data prompt for a resolution unless
--no-input is given, in which case the plan is refused instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan()
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply pending migrations to a graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, cleanup, err := newCLIExecutor()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := executor.WithRunMetadata(context.Background(), cliActor(), "cli")
		result, err := exec.UpSync(ctx, applyGraph, applyTo, applyDryRun)
		if err != nil {
			return err
		}
		printResult(result)
		if !result.Success {
			return fmt.Errorf("apply failed for graph %s", applyGraph)
		}
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back applied migrations of a graph",
	Long: `Rollback unwinds applied migrations newest first: everything newer
than --to, the given number of --steps, or just the most recent one.
Irreversible migrations and migrations without a down script refuse to
roll back before anything is executed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, cleanup, err := newCLIExecutor()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := executor.WithRunMetadata(context.Background(), cliActor(), "cli")
		result, err := exec.DownSync(ctx, rollbackGraph, rollbackTo, rollbackSteps, rollbackDryRun)
		if err != nil {
			return err
		}
		printResult(result)
		if !result.Success {
			return fmt.Errorf("rollback failed for graph %s", rollbackGraph)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every registered migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, cleanup, err := newCLIExecutor()
		if err != nil {
			return err
		}
		defer cleanup()

		graphs := statusGraphs(exec)
		if len(graphs) == 0 {
			fmt.Println("No migrations registered and no graphs configured.")
			return nil
		}

		ctx := context.Background()
		for _, graph := range graphs {
			statuses, err := exec.Status(ctx, graph)
			if err != nil {
				return err
			}
			fmt.Printf("Graph: %s\n", graph)
			if len(statuses) == 0 {
				fmt.Println("  no migrations registered")
				continue
			}
			for _, s := range statuses {
				fmt.Printf("  %-11s %s_%s  app=%s%s\n",
					displayStatus(s), s.Migration.Version, s.Migration.Name, s.Migration.App, appliedAt(s))
			}
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate migration scripts without executing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry.NewInMemoryRegistry()
		if err := executor.NewLoader(validateDir).LoadAll(reg); err != nil {
			return err
		}
		migrations := reg.GetAll()
		if len(migrations) == 0 {
			fmt.Printf("No migrations found in %s\n", validateDir)
			return nil
		}

		validator := gremlin.NewScriptValidator()
		failed := 0
		for _, m := range migrations {
			errs := validator.ValidateMigration(m)
			if len(errs) == 0 {
				continue
			}
			failed++
			for _, err := range errs {
				fmt.Printf("Invalid: %v\n", err)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d migration(s) failed validation", failed, len(migrations))
		}
		fmt.Printf("Successfully validated %d migration(s)\n", len(migrations))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gfm version %s\n", rootCmd.Version)
	},
}

func runPlan() error {
	to, err := schema.LoadDir(planModels)
	if err != nil {
		return err
	}

	var from *schema.Set
	if planInitial {
		from, err = schema.NewSet()
	} else {
		from, err = schema.ReadLock(filepath.Join(planModels, schema.LockFileName))
	}
	if err != nil {
		return err
	}

	// --check and --no-input run without a terminal; a nil resolver
	// refuses null conflicts instead of prompting.
	var resolver actions.Resolver
	if !planNoInput && !planCheck {
		resolver = actions.NewPromptResolver(os.Stdin, os.Stdout)
	}

	apps := unionApps(from, to)
	if planApp != "" {
		apps = []string{planApp}
	}

	base := time.Now()
	name := generator.SanitizeName(planName)
	var plans []*generator.Plan
	for i, app := range apps {
		acts, err := diff.Diff(from, to, diff.Options{App: app, Resolver: resolver})
		if err != nil {
			return err
		}
		if len(acts) == 0 {
			continue
		}
		// One version per app, a second apart, so multi-app plans never
		// collide on version_name_graph.
		version := generator.NewVersion(base.Add(time.Duration(i) * time.Second))
		plans = append(plans, generator.NewPlan(planGraph, app, version, name, acts))
	}

	if len(plans) == 0 {
		fmt.Println("No changes detected.")
		return nil
	}

	for _, plan := range plans {
		fmt.Printf("Migration %s_%s for app %s:\n", plan.Version, plan.Name, plan.App)
		for _, line := range plan.Console {
			fmt.Printf("  - %s\n", line)
		}
		if plan.Irreversible {
			fmt.Println("  ! this migration is irreversible")
		}
	}

	if planCheck {
		return fmt.Errorf("%s is out of date: %d migration(s) would be generated", schema.LockFileName, len(plans))
	}

	gen := generator.New(planDir)
	for _, plan := range plans {
		artifacts, err := gen.Write(plan)
		if err != nil {
			return err
		}
		fmt.Printf("Generated: %s\n", artifacts.UpPath)
		fmt.Printf("Generated: %s\n", artifacts.DownPath)
		fmt.Printf("Generated: %s\n", artifacts.GoPath)
	}

	merged, err := mergeLock(from, to, apps)
	if err != nil {
		return fmt.Errorf("failed to assemble schema lock: %w", err)
	}
	if err := gen.WriteLock(planModels, merged); err != nil {
		return err
	}
	fmt.Printf("Updated: %s\n", filepath.Join(planModels, schema.LockFileName))
	fmt.Printf("Successfully generated %d migration(s)\n", len(plans))
	return nil
}

// unionApps returns every app present in either set, sorted
func unionApps(from, to *schema.Set) []string {
	seen := make(map[string]bool)
	var apps []string
	for _, app := range append(from.Apps(), to.Apps()...) {
		if !seen[app] {
			seen[app] = true
			apps = append(apps, app)
		}
	}
	sort.Strings(apps)
	return apps
}

// mergeLock snapshots the planned apps at their new definitions and
// keeps every other app at its locked state, so planning a single app
// never silently absorbs unplanned changes from the rest.
func mergeLock(from, to *schema.Set, planned []string) (*schema.Set, error) {
	plannedSet := make(map[string]bool, len(planned))
	for _, app := range planned {
		plannedSet[app] = true
	}
	var models []*schema.Model
	for _, m := range from.Models {
		if !plannedSet[m.App] {
			models = append(models, m)
		}
	}
	for _, m := range to.Models {
		if plannedSet[m.App] {
			models = append(models, m)
		}
	}
	return schema.NewSet(models...)
}

// newCLIExecutor wires the executor the way the server does, minus the
// queue: CLI runs are always synchronous.
func newCLIExecutor() (*executor.Executor, func(), error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	tracker, err := state.NewStore(cfg.State.Driver, cfg.State.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize state store: %w", err)
	}

	locker, err := newLocker(cfg)
	if err != nil {
		_ = tracker.Close()
		return nil, nil, fmt.Errorf("failed to initialize locker: %w", err)
	}

	exec := executor.NewExecutor(registry.GlobalRegistry, tracker, locker)
	if err := exec.SetGraphs(cfg.Graphs); err != nil {
		_ = locker.Close()
		_ = tracker.Close()
		return nil, nil, err
	}
	exec.RegisterBackend("gremlin", gremlin.NewBackend())

	if err := executor.NewLoader(cfg.Generator.MigrationsDir).LoadAll(registry.GlobalRegistry); err != nil {
		_ = locker.Close()
		_ = tracker.Close()
		return nil, nil, fmt.Errorf("failed to load migrations from %s: %w", cfg.Generator.MigrationsDir, err)
	}

	cleanup := func() {
		_ = locker.Close()
		_ = tracker.Close()
	}
	return exec, cleanup, nil
}

func newLocker(cfg *config.Config) (lock.Locker, error) {
	if cfg.Lock.Type == "etcd" {
		return lock.NewEtcd(lock.EtcdConfig{
			Endpoints:   cfg.Lock.EtcdEndpoints,
			Username:    cfg.Lock.EtcdUsername,
			Password:    cfg.Lock.EtcdPassword,
			DialTimeout: cfg.Lock.DialTimeout,
			TTL:         cfg.Lock.TTL,
		})
	}
	return lock.NewLocal(), nil
}

func cliActor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "cli_user"
}

// statusGraphs lists the graphs worth reporting: everything a loaded
// migration targets plus everything configured, sorted
func statusGraphs(exec *executor.Executor) []string {
	if statusGraph != "" {
		return []string{statusGraph}
	}
	seen := make(map[string]bool)
	var graphs []string
	for _, m := range exec.GetRegistry().GetAll() {
		if !seen[m.Graph] {
			seen[m.Graph] = true
			graphs = append(graphs, m.Graph)
		}
	}
	for _, name := range exec.GraphNames() {
		if !seen[name] {
			seen[name] = true
			graphs = append(graphs, name)
		}
	}
	sort.Strings(graphs)
	return graphs
}

func displayStatus(s *executor.MigrationStatus) string {
	if s.Record == nil {
		return "pending"
	}
	return string(s.Record.Status)
}

func appliedAt(s *executor.MigrationStatus) string {
	if s.Record == nil || !s.Applied {
		return ""
	}
	return "  applied_at=" + s.Record.AppliedAt.UTC().Format(time.RFC3339)
}

func printResult(result *executor.Result) {
	verb := "Applied"
	if result.Action == state.ActionRollback {
		verb = "Rolled back"
	}
	for _, id := range result.Applied {
		fmt.Printf("%s: %s\n", verb, id)
	}
	for _, id := range result.Skipped {
		fmt.Printf("Skipped: %s (already applied)\n", id)
	}
	for _, msg := range result.Errors {
		fmt.Printf("Failed: %s\n", msg)
	}
	if result.Success {
		fmt.Printf("Successfully completed %s for graph %s (%d migration(s))\n",
			result.Action, result.Graph, len(result.Applied))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	planCmd.Flags().StringVarP(&planModels, "models", "m", "models", "Path to the YAML model definitions")
	planCmd.Flags().StringVarP(&planDir, "dir", "d", "migrations", "Directory to write migration artifacts to")
	planCmd.Flags().StringVarP(&planGraph, "graph", "g", "", "Graph connection the migrations target (required)")
	planCmd.Flags().StringVarP(&planApp, "app", "a", "", "Restrict planning to one app")
	planCmd.Flags().StringVarP(&planName, "name", "n", "auto", "Migration name")
	planCmd.Flags().BoolVar(&planNoInput, "no-input", false, "Never prompt; refuse plans that need a null resolution")
	planCmd.Flags().BoolVar(&planCheck, "check", false, "Exit non-zero if migrations would be generated, write nothing")
	planCmd.Flags().BoolVar(&planInitial, "initial", false, "Plan against an empty baseline instead of the schema lock")
	_ = planCmd.MarkFlagRequired("graph")

	applyCmd.Flags().StringVarP(&applyGraph, "graph", "g", "", "Graph to apply migrations to (required)")
	applyCmd.Flags().StringVar(&applyTo, "to", "", "Apply up to and including this version")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "List what would be applied without executing")
	_ = applyCmd.MarkFlagRequired("graph")

	rollbackCmd.Flags().StringVarP(&rollbackGraph, "graph", "g", "", "Graph to roll back (required)")
	rollbackCmd.Flags().StringVar(&rollbackTo, "to", "", "Roll back everything newer than this version")
	rollbackCmd.Flags().IntVar(&rollbackSteps, "steps", 0, "Number of migrations to roll back (default 1)")
	rollbackCmd.Flags().BoolVar(&rollbackDryRun, "dry-run", false, "List what would be rolled back without executing")
	_ = rollbackCmd.MarkFlagRequired("graph")

	statusCmd.Flags().StringVarP(&statusGraph, "graph", "g", "", "Limit the report to one graph")

	validateCmd.Flags().StringVarP(&validateDir, "dir", "d", "migrations", "Directory containing migration artifacts")

	rootCmd.AddCommand(planCmd, applyCmd, rollbackCmd, statusCmd, validateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, actions.ErrAborted) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
