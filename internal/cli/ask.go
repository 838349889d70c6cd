package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askUserID    string
	askSessionID string
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Ask the weather assistant a question",
	Long: `Ask the weather assistant a one-shot question. The conversation is kept in
the named session, so follow-up questions on the same session see the history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askUserID, "user", "local", "user ID for the session")
	askCmd.Flags().StringVar(&askSessionID, "session", "default", "session ID")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	message := strings.Join(args, " ")

	response, err := a.runner.Ask(context.Background(), askUserID, askSessionID, message)
	if err != nil {
		return err
	}

	fmt.Println(response)
	return nil
}
