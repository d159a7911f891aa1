package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the vector index from the stored documents",
	Args:  cobra.NoArgs,
	RunE:  runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	m, err := openManager(cmd.Context(), GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer m.Close()

	bar := newProgressBar("Rebuilding")
	res, err := m.Rebuild(cmd.Context(), bar.update)
	bar.finish()
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	fmt.Printf("\nRebuild complete:\n")
	fmt.Printf("  Documents: %d\n", res.Documents)
	fmt.Printf("  Chunks:    %d\n", res.Chunks)
	fmt.Printf("  Build:     %s\n", res.BuildID)
	for _, e := range res.Failed {
		fmt.Printf("  - skipped: %v\n", e)
	}
	return nil
}
