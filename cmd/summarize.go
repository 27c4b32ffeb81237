package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitsage/internal/agent"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize the loaded repository from its file tree and README",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireRepo()
		if err != nil {
			return err
		}
		p, err := activeProvider(ctx, st)
		if err != nil {
			return err
		}

		fmt.Printf("Summarizing %s...\n", st.Repo.ID)
		summary, err := agent.New(newCaller(p), nil, st.Repo.WorkDir, cfg).Summarize(ctx)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}
