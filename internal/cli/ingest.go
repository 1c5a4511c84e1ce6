package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ingestClear bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Index course documents from a file or folder",
	Long: `Index course documents into the vector database.

When given a folder, every .txt and .md file in it is processed; courses
that are already indexed are skipped. When given a single file, the
course is reindexed even if it exists.

Examples:
  coursechat ingest ./docs
  coursechat ingest ./docs --clear
  coursechat ingest ./docs/course1_script.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestClear, "clear", false, "drop all existing data before indexing")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := context.Background()

	ingestor, err := getIngestor(ctx)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		course, chunks, err := ingestor.AddCourseDocument(ctx, path)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %q (%d chunks)\n", course.Title, chunks)
		return nil
	}

	result, err := ingestor.AddCourseFolder(ctx, path, ingestClear)
	if err != nil {
		return err
	}

	fmt.Printf("Courses added:   %d\n", result.CoursesAdded)
	fmt.Printf("Courses skipped: %d\n", result.CoursesSkipped)
	fmt.Printf("Chunks added:    %d\n", result.ChunksAdded)
	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  %s\n", e)
		}
	}
	return nil
}
