package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitsage/internal/agent"
)

var explainCmd = &cobra.Command{
	Use:   "explain <file>",
	Short: "Explain one file of the loaded repository",
	Args:  cobra.ExactArgs(1),
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

		explanation, err := agent.New(newCaller(p), nil, st.Repo.WorkDir, cfg).Explain(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(explanation)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
}
