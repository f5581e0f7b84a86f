package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check directories and collaborator binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cfg)
			rows := make([][]string, 0, len(results))
			failing := 0
			for _, r := range results {
				state := "ok"
				if !r.Passed {
					state = "FAIL"
					failing++
				}
				rows = append(rows, []string{r.Name, state, r.Detail})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config: %s\n\n", ctx.configPath)
			fmt.Fprintln(out, renderTable([]string{"Check", "State", "Detail"}, rows))

			if failing > 0 {
				return fmt.Errorf("%d preflight check(s) failing", failing)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
