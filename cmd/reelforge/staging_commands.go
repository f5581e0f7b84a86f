package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage staging directories",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staging directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			dirs, err := staging.ListDirectories(cfg.Paths.StagingDir)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No staging directories found")
				return nil
			}

			fmt.Fprintf(out, "Staging directory: %s\n\n", cfg.Paths.StagingDir)
			rows := make([][]string, 0, len(dirs))
			var totalSize int64
			for _, dir := range dirs {
				totalSize += dir.Size
				rows = append(rows, []string{
					dir.Name,
					formatSize(dir.Size),
					formatAge(time.Since(dir.ModTime)),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Directory", "Size", "Age"}, rows, 1, 2))
			fmt.Fprintf(out, "Total: %s across %d directories\n", formatSize(totalSize), len(dirs))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAgeHours int

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale staging directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			hours := maxAgeHours
			if hours <= 0 {
				hours = cfg.Staging.MaxAgeHours
			}

			result := staging.CleanStale(cfg.Paths.StagingDir, time.Duration(hours)*time.Hour, logger)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d stale directories (older than %dh)\n", len(result.Removed), hours)
			for _, removed := range result.Removed {
				fmt.Fprintf(out, "  %s\n", removed)
			}
			if len(result.Errors) > 0 {
				for _, cleanupErr := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "  failed: %s: %v\n", cleanupErr.Path, cleanupErr.Error)
				}
				return fmt.Errorf("%d directories could not be removed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAgeHours, "max-age", 0, "Age threshold in hours (defaults to staging.max_age_hours)")
	return cmd
}

func formatSize(size int64) string {
	const (
		kib = 1 << 10
		mib = 1 << 20
		gib = 1 << 30
	)
	switch {
	case size >= gib:
		return fmt.Sprintf("%.1f GiB", float64(size)/gib)
	case size >= mib:
		return fmt.Sprintf("%.1f MiB", float64(size)/mib)
	case size >= kib:
		return fmt.Sprintf("%.1f KiB", float64(size)/kib)
	default:
		return strconv.FormatInt(size, 10) + " B"
	}
}

func formatAge(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	switch {
	case age >= 24*time.Hour:
		return fmt.Sprintf("%.1fd", age.Hours()/24)
	case age >= time.Hour:
		return fmt.Sprintf("%.1fh", age.Hours())
	default:
		return fmt.Sprintf("%.0fm", age.Minutes())
	}
}
