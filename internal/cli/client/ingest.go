package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/veridoc/veridoc/internal/service"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a text file into the document collection",
		Long:  "Ingest reads a local file, uploads it, and indexes it under its source name. Re-ingesting the same source replaces the previous version.",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().String("source", "", "Source name to index under (default: file basename)")

	return cmd
}

type ingestRequest struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	apiClient, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	path := args[0]
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	source, _ := cmd.Flags().GetString("source")
	if source == "" {
		source = filepath.Base(path)
	}

	resp, err := apiClient.Post("/documents", ingestRequest{Source: source, Text: string(text)})
	if err != nil {
		return err
	}

	var result service.IngestResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("ingested %s: %d chunks (doc %s)\n", result.Source, result.ChunksAdded, result.DocID)
	return nil
}
