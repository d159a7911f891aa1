package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents in the store",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	m, err := openManager(cmd.Context(), GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer m.Close()

	docs, err := m.ListDocuments()
	if err != nil {
		return err
	}

	if listJSON {
		output, _ := json.MarshalIndent(docs, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(docs) == 0 {
		fmt.Println("No documents.")
		return nil
	}
	for _, d := range docs {
		fmt.Printf("%-40s %6d chunks %10d bytes  %s\n", d.ID, d.Chunks, d.Size, d.AddedAt.Format("2006-01-02 15:04"))
	}

	status, err := m.Status()
	if err != nil {
		return err
	}
	fmt.Printf("\n%d documents, %d entries (%s, %d dimensions)\n", status.Documents, status.Entries, status.Metric, status.Dimension)
	return nil
}
