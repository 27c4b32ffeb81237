package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitsage/internal/agent"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <file>",
	Short: "Suggest improvements for one file of the loaded repository",
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

		suggestions, err := agent.New(newCaller(p), nil, st.Repo.WorkDir, cfg).Suggest(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(suggestions)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
}
