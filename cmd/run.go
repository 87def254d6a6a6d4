package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/pipeline"
)

var (
	runHintURL    string
	runDepartment string
	runMaxRecords int
	runOutput     string
)

var runCmd = &cobra.Command{
	Use:   "run <organization>",
	Short: "Run a full roster extraction for one organization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		orch, err := buildOrchestrator(st)
		if err != nil {
			return err
		}
		result, err := orch.RunExtraction(ctx, pipeline.Request{
			Organization: args[0],
			HintURL:      runHintURL,
			Department:   runDepartment,
			MaxRecords:   runMaxRecords,
		})
		if err != nil {
			return eris.Wrap(err, "run extraction")
		}

		costs := orch.CostSummary()
		zap.L().Info("external spend",
			zap.Float64("total_usd", costs.TotalExternalCost),
			zap.Int("cached_calls", costs.CachedCallCount),
			zap.Int("live_calls", costs.LiveCallCount),
		)

		out := os.Stdout
		if runOutput != "" {
			f, err := os.Create(runOutput)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runHintURL, "url", "", "organization website (skips domain probing)")
	runCmd.Flags().StringVar(&runDepartment, "department", "", "restrict extraction to one department")
	runCmd.Flags().IntVar(&runMaxRecords, "max-records", 0, "cap the number of records returned (0 = config default)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "write the result JSON to a file instead of stdout")
	rootCmd.AddCommand(runCmd)
}
