package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gitsage/internal/loader"
	"gitsage/internal/session"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all indexes, temporary clones, and the session state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		indexes := 0
		if entries, err := os.ReadDir(cfg.IndexDir()); err == nil {
			for _, e := range entries {
				if strings.HasSuffix(e.Name(), ".db") {
					indexes++
				}
			}
		}
		if err := os.RemoveAll(cfg.IndexDir()); err != nil {
			return fmt.Errorf("remove indexes: %w", err)
		}

		clones, err := loader.CleanClones()
		if err != nil {
			return fmt.Errorf("remove clones: %w", err)
		}

		if err := session.ResetState(cfg.StatePath()); err != nil {
			return fmt.Errorf("reset session: %w", err)
		}

		fmt.Println(successText(fmt.Sprintf("Cleanup complete: %d index(es) and %d clone(s) removed.", indexes, clones)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
