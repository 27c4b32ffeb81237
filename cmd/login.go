package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gitsage/internal/session"
)

var flagToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a GitHub personal access token for private repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := flagToken
		if token == "" {
			var err error
			token, err = promptValue("GitHub personal access token: ")
			if err != nil {
				return err
			}
		}
		if err := session.SetCredential(session.SlotGitHub, token); err != nil {
			return err
		}
		fmt.Println(successText("GitHub token saved."))
		return nil
	},
}

// promptValue reads one line from stdin.
func promptValue(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("empty input")
	}
	return value, nil
}

func init() {
	loginCmd.Flags().StringVar(&flagToken, "token", "", "GitHub personal access token (prompted for when omitted)")
	rootCmd.AddCommand(loginCmd)
}
