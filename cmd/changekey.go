package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gitsage/internal/provider"
	"gitsage/internal/session"
)

var (
	flagProvider string
	flagKey      string
)

var changeKeyCmd = &cobra.Command{
	Use:   "change-key",
	Short: "Store an LLM API key and switch the active provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.ToLower(flagProvider)
		switch name {
		case provider.NameOpenAI, provider.NameGemini, provider.NameClaude:
		default:
			return fmt.Errorf("unknown provider %q: use openai, gemini, or claude", flagProvider)
		}

		key := flagKey
		if key == "" {
			var err error
			key, err = promptValue(fmt.Sprintf("Enter your %s API key: ", name))
			if err != nil {
				return err
			}
		}
		if err := session.SetCredential(name, key); err != nil {
			return err
		}

		st, err := session.LoadState(cfg.StatePath())
		if err != nil {
			return err
		}
		st.Provider = name
		if err := session.SaveState(cfg.StatePath(), st); err != nil {
			return err
		}

		fmt.Println(successText(fmt.Sprintf("API key saved. Active provider is now %s.", name)))
		return nil
	},
}

func init() {
	changeKeyCmd.Flags().StringVar(&flagProvider, "provider", "openai", "provider the key belongs to: openai, gemini, or claude")
	changeKeyCmd.Flags().StringVar(&flagKey, "key", "", "API key (prompted for when omitted)")
	rootCmd.AddCommand(changeKeyCmd)
}
