package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gitsage/internal/agent"
	"gitsage/internal/rag"
)

var flagK int

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the loaded repository",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question := strings.Join(args, " ")

		st, err := requireRepo()
		if err != nil {
			return err
		}
		p, err := activeProvider(ctx, st)
		if err != nil {
			return err
		}
		s, err := openIndex(st)
		if err != nil {
			return err
		}
		defer s.Close()

		retriever := rag.NewRetriever(s, newEmbedder(p), cfg)
		a := agent.New(newCaller(p), retriever, st.Repo.WorkDir, cfg)

		answer, err := a.Ask(ctx, question, flagK)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	},
}

func init() {
	askCmd.Flags().IntVarP(&flagK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	rootCmd.AddCommand(askCmd)
}
