package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gitsage/internal/review"
	"gitsage/internal/session"
)

var reviewCmd = &cobra.Command{
	Use:   "review-pr <url>",
	Short: "Review a GitHub pull request",
	Long:  "Reviews a pull request by analyzing its changed files in token-bounded groups and synthesizing one review. Needs no loaded repository, only a provider key; private repositories also need a GitHub token (gitsage login).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := session.LoadState(cfg.StatePath())
		if err != nil {
			return err
		}
		p, err := activeProvider(ctx, st)
		if err != nil {
			return err
		}
		ghToken, err := session.Credential(session.SlotGitHub)
		if err != nil {
			return err
		}

		fmt.Println("Reviewing pull request...")
		r := review.New(review.NewGitHubFetcher(ghToken), newCaller(p), cfg)
		res, err := r.Review(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Println(res.Review)
		if len(res.FailedFiles) > 0 {
			fmt.Println(warnText("Analysis failed for: " + strings.Join(res.FailedFiles, ", ")))
		}
		if len(res.SkippedFiles) > 0 {
			fmt.Println(warnText("Skipped (binary or oversized): " + strings.Join(res.SkippedFiles, ", ")))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}
