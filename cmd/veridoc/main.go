package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/veridoc/veridoc/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "veridoc",
		Short: "Veridoc CLI - question answering over your documents",
		Long: `Veridoc CLI ingests documents and asks questions against them.

Environment variables:
  VERIDOC_API_KEY   API key for authentication (if the server requires one)
  VERIDOC_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")

	// Accept snake_case flag spellings too.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.SourcesCmd())
	rootCmd.AddCommand(client.ClearCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
