package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the document store",
	Long: `Embed the query and return the most similar chunks.

Examples:
  docrag query -q "refund policy"
  docrag query -q "onboarding checklist" --top-k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	m, err := openManager(cmd.Context(), GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer m.Close()

	res, err := m.Query(cmd.Context(), queryText, queryTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if res.NothingIndexed {
		fmt.Println("Nothing indexed yet. Run 'docrag add' first.")
		return nil
	}
	if len(res.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %s\n\n", len(res.Results), queryText)
	for i, r := range res.Results {
		fmt.Printf("--- [%d] %s#%d (score: %.3f) ---\n", i+1, r.Chunk.DocID, r.Chunk.Index, r.Score)
		text := []rune(r.Chunk.Text)
		if len(text) > 500 {
			text = append(text[:500], []rune("...")...)
		}
		fmt.Println(string(text))
		fmt.Println()
	}
	return nil
}
