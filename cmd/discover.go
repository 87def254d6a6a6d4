package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/roster-cli/internal/model"
)

var (
	discoverHintURL    string
	discoverDepartment string
	discoverInvalidate bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover <organization>",
	Short: "Discover how an organization publishes its people directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		org := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		orch, err := buildOrchestrator(st)
		if err != nil {
			return err
		}

		if discoverInvalidate {
			if err := st.InvalidatePattern(ctx, model.NormalizeOrgKey(org), model.NormalizeOrgKey(discoverDepartment)); err != nil {
				return eris.Wrap(err, "invalidate pattern")
			}
		}

		pattern, err := orch.Discover(ctx, org, discoverHintURL)
		if err != nil {
			return eris.Wrap(err, "discover")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pattern)
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverHintURL, "url", "", "organization website (skips domain probing)")
	discoverCmd.Flags().StringVar(&discoverDepartment, "department", "", "department scope for --invalidate")
	discoverCmd.Flags().BoolVar(&discoverInvalidate, "invalidate", false, "drop the cached pattern and re-discover")
	rootCmd.AddCommand(discoverCmd)
}
