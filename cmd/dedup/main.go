package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dedup-go/internal/app"
	"dedup-go/internal/config"
	"dedup-go/internal/dedup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, newRootCmd()); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes the command tree. An unknown subcommand is reported by cobra
// without a usage block, so one is printed here.
func run(ctx context.Context, rootCmd *cobra.Command) error {
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err != nil && strings.HasPrefix(err.Error(), "unknown command") {
		cmd.Print(cmd.UsageString())
	}
	return err
}

// loadConfig reads the config file, falling back to defaults when none exists.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.Load(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a DedupApp. The caller must defer app.Close().
func newApp(cmd *cobra.Command) (*app.DedupApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	opts := app.Options{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
	if f := cmd.Flags().Lookup("verbose"); f != nil {
		opts.Verbose, _ = cmd.Flags().GetBool("verbose")
	}
	if f := cmd.Flags().Lookup("algorithm"); f != nil {
		opts.Algorithm, _ = cmd.Flags().GetString("algorithm")
	}
	if f := cmd.Flags().Lookup("workers"); f != nil {
		opts.Workers, _ = cmd.Flags().GetInt("workers")
	}

	a, err := app.NewDedupApp(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// scanRequest reads the positional roots and the pattern flags.
func scanRequest(cmd *cobra.Command, args []string) app.ScanRequest {
	include, _ := cmd.Flags().GetString("include")
	exclude, _ := cmd.Flags().GetString("exclude")
	return app.ScanRequest{Roots: args, Include: include, Exclude: exclude}
}

// printGroups writes one block per group: "#<digest>" then each member
// indented by one space.
func printGroups(w io.Writer, groups []*dedup.DuplicateGroup) {
	for _, g := range groups {
		fmt.Fprintf(w, "#%s\n", g.Digest)
		for _, e := range g.Members {
			fmt.Fprintf(w, " %s\n", e.Path())
		}
	}
}

// printRemovals writes one line per deletion attempt of a run.
func printRemovals(w io.Writer, removals []*dedup.Removal) {
	if len(removals) == 0 {
		fmt.Fprintln(w, "No files removed.")
		return
	}
	for _, r := range removals {
		if r.Error != "" {
			fmt.Fprintf(w, "failed   %s  %d bytes  %s\n", r.Path, r.Size, r.Error)
			continue
		}
		fmt.Fprintf(w, "removed  %s  %d bytes\n", r.Path, r.Size)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.List(cmd.Context(), scanRequest(cmd, args))
	if err != nil {
		return err
	}
	printGroups(cmd.OutOrStdout(), res.Groups)
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	if force, _ := cmd.Flags().GetBool("force"); !force {
		return runList(cmd, args)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	_, report, err := a.Clean(cmd.Context(), scanRequest(cmd, args))
	if report != nil {
		for _, f := range report.Failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to remove %s: %v\n", f.Path, f.Err)
		}
	}
	return err
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().String("include", "", "Only consider paths matching this regular expression")
	cmd.Flags().String("exclude", "", "Skip paths matching this regular expression")
	cmd.Flags().BoolP("verbose", "v", false, "Print each file as it is hashed or removed")
	cmd.Flags().String("algorithm", "", fmt.Sprintf("Digest algorithm %v (default from config)", dedup.AlgorithmNames()))
	cmd.Flags().Int("workers", 0, "Number of hashing workers (default from config, 0 = one per CPU)")
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dedup",
		Short: "Find and remove duplicate files",
		// Flag and argument errors are reported before this runs and still
		// print usage; failures after this point do not.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
	}

	listCmd := &cobra.Command{
		Use:   "list PATH...",
		Short: "List groups of files with identical content",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runList,
	}
	addScanFlags(listCmd)

	cleanCmd := &cobra.Command{
		Use:   "clean PATH...",
		Short: "Remove all but one file of each duplicate group",
		Long: "Remove all but one file of each duplicate group. The file with the\n" +
			"shortest path is kept. Without --force this only lists the groups.",
		Args: cobra.MinimumNArgs(1),
		RunE: runClean,
	}
	addScanFlags(cleanCmd)
	cleanCmd.Flags().BoolP("force", "f", false, "Actually remove files")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "View recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			runID, _ := cmd.Flags().GetInt64("run")
			backup, _ := cmd.Flags().GetString("backup")

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if backup != "" {
				src, err := a.BackupHistory(backup)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backed up %s to %s\n", src, backup)
				return nil
			}

			if runID > 0 {
				removals, err := a.Removals(runID)
				if err != nil {
					return err
				}
				printRemovals(cmd.OutOrStdout(), removals)
				return nil
			}

			runs, err := a.History(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				duration := ""
				if r.FinishedAt.Valid {
					duration = r.FinishedAt.Time.Sub(r.StartedAt).Truncate(time.Millisecond).String()
				}
				fmt.Fprintf(out, "#%d  %-5s  %s  %-7s  groups=%d redundant=%d removed=%d  %s  %v\n",
					r.ID,
					r.Command,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Status,
					r.Groups,
					r.Redundant,
					r.FilesRemoved,
					duration,
					r.Roots,
				)
			}
			return nil
		},
	}
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	historyCmd.Flags().Int64("run", 0, "Show the files removed by this run")
	historyCmd.Flags().String("backup", "", "Copy the history database to this path")
	historyCmd.MarkFlagsMutuallyExclusive("run", "backup")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := app.GetDefaults()
			if err != nil {
				return fmt.Errorf("failed to get defaults: %w", err)
			}

			cfg := config.NewConfig(defaults["base_dir"])
			if err := config.Init(defaults["config_path"], cfg); err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", defaults["config_path"])
			fmt.Fprintf(cmd.OutOrStdout(), "Base Dir: %s\n", cfg.BaseDir)
			return nil
		},
	}

	configListCmd := &cobra.Command{
		Use:   "list",
		Short: "View configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration from %s:\n\n", path)
			fmt.Fprintf(out, "Base Dir:    %s\n", cfg.BaseDir)
			fmt.Fprintf(out, "Log Dir:     %s\n", cfg.LogDir)
			fmt.Fprintf(out, "Algorithm:   %s\n", cfg.Scan.Algorithm)
			fmt.Fprintf(out, "Workers:     %d\n", cfg.Scan.Workers)
			fmt.Fprintf(out, "Buffer Size: %d\n", cfg.Scan.BufferSize)
			fmt.Fprintf(out, "Database:    %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
			fmt.Fprintf(out, "Ignore:      %v\n", cfg.Filesystem.Ignore)
			return nil
		},
	}

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	return rootCmd
}
