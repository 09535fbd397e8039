package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tracyhatemice/noticecal/internal/credential"
	"github.com/tracyhatemice/noticecal/internal/display"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage secrets stored in the OS keyring",
}

var secretSetCmd = &cobra.Command{
	Use:   "set KEY",
	Short: "Store a secret read from stdin",
	Long: `Store a secret in the OS keyring. The value is read from the first line
of standard input. Keys looked up when credentials.keyring is enabled:

  mailbox-password     mailbox login password
  gemini-api-key       Gemini API key
  anthropic-api-key    Anthropic API key
  smtp-password        digest mail relay password

Example:
  printf '%s\n' "$PASS" | noticecal secret set mailbox-password`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		value := strings.TrimRight(line, "\r\n")
		if value == "" {
			if err != nil {
				return fmt.Errorf("read secret: %w", err)
			}
			return fmt.Errorf("empty secret")
		}

		if err := credential.New(keyringDir(cfg)).Set(args[0], value); err != nil {
			return err
		}
		display.SuccessMsg(cmd.OutOrStdout(), "stored %s", args[0])
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd)
	rootCmd.AddCommand(secretCmd)
}
