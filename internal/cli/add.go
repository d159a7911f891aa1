package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"docrag/internal/adapter/fs"
	"docrag/internal/usecase"
)

var addCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Add documents to the store",
	Long: `Add files or directories to the document store. Directories are walked
recursively using the store include/exclude patterns. Files that are already
in the store are skipped.

Examples:
  docrag add handbook.md
  docrag add ./docs ./notes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	walker := fs.NewWalker(cfg.Store.Includes, cfg.Store.Excludes)

	var uploads []usecase.Upload
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		files, err := walker.Walk(path)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", arg, err)
		}
		for _, f := range files {
			data, err := fs.ReadFile(f.Path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", f.Path, err)
			}
			uploads = append(uploads, usecase.Upload{Name: filepath.Base(f.Path), Data: data})
		}
	}

	if len(uploads) == 0 {
		fmt.Println("No supported files found.")
		return nil
	}

	m, err := openManager(cmd.Context(), cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer m.Close()

	bar := newProgressBar("Indexing")
	res, err := m.AddDocuments(cmd.Context(), uploads, bar.update)
	bar.finish()

	fmt.Printf("\n%s\n", res.Summary())
	fmt.Printf("  Skipped (already present): %d\n", res.Skipped)
	fmt.Printf("  Chunks added:              %d\n", res.Chunks)
	if len(res.Errors) > 0 {
		fmt.Printf("\nFailures:\n")
		for _, e := range res.Errors {
			fmt.Printf("  - %v\n", e)
		}
	}
	return err
}
