package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gitsage/internal/session"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete all stored credentials and reset the provider selection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var errs []error
		for _, slot := range session.CredentialSlots {
			if err := session.DeleteCredential(slot); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", slot, err))
			}
		}
		if len(errs) > 0 {
			return errors.Join(errs...)
		}

		st, err := session.LoadState(cfg.StatePath())
		if err != nil {
			return err
		}
		if st.Provider != "" {
			st.Provider = ""
			if err := session.SaveState(cfg.StatePath(), st); err != nil {
				return err
			}
		}

		fmt.Println(successText("All credentials cleared."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
