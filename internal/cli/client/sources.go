package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veridoc/veridoc/internal/service"
)

// SourcesCmd returns the sources command
func SourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List indexed sources and collection size",
		RunE:  runSources,
	}
}

func runSources(cmd *cobra.Command, args []string) error {
	apiClient, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	resp, err := apiClient.Get("/documents")
	if err != nil {
		return err
	}

	var stats service.CollectionStats
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("%d chunks across %d source(s)\n", stats.ChunkCount, len(stats.Sources))
	for _, source := range stats.Sources {
		fmt.Printf("  %s\n", source)
	}
	return nil
}

// ClearCmd returns the clear command
func ClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every indexed document",
		RunE:  runClear,
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runClear(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		fmt.Print("This deletes the entire collection. Continue? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Println("aborted")
			return nil
		}
	}

	apiClient, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	if _, err := apiClient.Delete("/documents"); err != nil {
		return err
	}

	fmt.Println("collection cleared")
	return nil
}
