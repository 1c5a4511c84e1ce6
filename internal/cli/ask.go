package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/coursechat/internal/client"
)

var (
	askSession string
	askServer  string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question about the indexed courses",
	Long: `Ask a question and get an answer grounded in the indexed course
materials. The model searches course content on its own when the
question needs it.

Pass --session to continue an earlier conversation; the session id is
printed with each answer.

Examples:
  coursechat ask "What is covered in lesson 5 of the MCP course?"
  coursechat ask "Are there courses about prompt caching?"
  coursechat ask "What did you mean by that?" --session 4f7c...`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "continue an existing session")
	askCmd.Flags().StringVar(&askServer, "server", "", "query a running coursechat-server instead of the local pipeline")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var q querier
	if askServer != "" {
		q = client.New(askServer)
	} else {
		assistant, err := getAssistant(ctx)
		if err != nil {
			return err
		}
		q = assistant
	}

	resp, err := q.Query(ctx, args[0], askSession)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	fmt.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range resp.Sources {
			if src.Link != nil {
				fmt.Printf("  %s (%s)\n", src.Label, *src.Link)
			} else {
				fmt.Printf("  %s\n", src.Label)
			}
		}
	}
	fmt.Printf("\nSession: %s\n", resp.SessionID)
	return nil
}
