package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List indexed courses",
	Args:  cobra.NoArgs,
	RunE:  runCourses,
}

func runCourses(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := getStore(ctx)
	if err != nil {
		return err
	}

	titles, err := store.CourseTitles(ctx)
	if err != nil {
		return fmt.Errorf("list courses: %w", err)
	}

	if len(titles) == 0 {
		fmt.Println("No courses indexed yet. Run 'coursechat ingest <folder>' first.")
		return nil
	}

	fmt.Printf("Indexed courses (%d):\n", len(titles))
	for _, title := range titles {
		fmt.Printf("  %s\n", title)
	}
	return nil
}
