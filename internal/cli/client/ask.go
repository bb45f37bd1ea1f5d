package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veridoc/veridoc/internal/domain"
)

// AskCmd returns the ask command
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the ingested documents",
		Long: `Ask streams the answer as it is generated. Progress updates go to
stderr; the answer itself goes to stdout so it can be piped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringArray("source", nil, "Restrict search to these sources (repeatable)")
	cmd.Flags().Bool("show-plan", false, "Print the retrieval plan and hit list to stderr")

	return cmd
}

type askRequest struct {
	Question string   `json:"question"`
	Sources  []string `json:"sources,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	apiClient, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	sources, _ := cmd.Flags().GetStringArray("source")
	showPlan, _ := cmd.Flags().GetBool("show-plan")

	body, err := apiClient.Stream("/ask", askRequest{
		Question: strings.Join(args, " "),
		Sources:  sources,
	})
	if err != nil {
		return err
	}
	defer body.Close()

	sawToken := false
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event domain.AnswerEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return fmt.Errorf("malformed event from server: %w", err)
		}

		switch event.Type {
		case domain.EventStatus:
			fmt.Fprintf(os.Stderr, "* %s\n", event.Message)
		case domain.EventMetadata:
			if showPlan {
				printPlan(event)
			}
		case domain.EventToken:
			fmt.Print(event.Content)
			sawToken = true
		case domain.EventError:
			return fmt.Errorf("server error: %s", event.Error)
		case domain.EventDone:
			if sawToken {
				fmt.Println()
			}
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}
	return fmt.Errorf("stream ended without a terminal event")
}

func printPlan(event domain.AnswerEvent) {
	if event.Plan != nil {
		fmt.Fprintf(os.Stderr, "plan: %d queries, top_k=%d, rounds=%d (%s tier)\n",
			len(event.Plan.Queries), event.Plan.TopK, event.Plan.Rounds, event.Plan.Tier)
		for _, q := range event.Plan.Queries {
			fmt.Fprintf(os.Stderr, "  - %s\n", q)
		}
	}
	for _, h := range event.Hits {
		fmt.Fprintf(os.Stderr, "hit: [%s#%d] score=%.3f\n", h.Source, h.ChunkIndex, h.OrderingScore())
	}
}
