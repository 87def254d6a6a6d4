package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runsDepartment string

var runsCmd = &cobra.Command{
	Use:   "last-run <organization>",
	Short: "Show the most recent run for an organization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.LastRun(ctx, args[0], runsDepartment)
		if err != nil {
			return eris.Wrap(err, "last run")
		}
		if run == nil {
			fmt.Fprintln(os.Stderr, "No runs recorded.")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsDepartment, "department", "", "department the run was scoped to")
	rootCmd.AddCommand(runsCmd)
}
