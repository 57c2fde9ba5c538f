package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/store"
)

type numberAction func(st *store.Store, ctx context.Context, id int64, number chapter.Number) (*models.Bookmark, error)

// newNumberCommand builds a "<verb> <id> <number>" command.
func newNumberCommand(ctx *commandContext, use, short, done string, action numberAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id> <number>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookmarkID(args[0])
			if err != nil {
				return err
			}
			number, err := parseNumber(args[1])
			if err != nil {
				return err
			}
			app, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			b, err := action(app.Store(), cmd.Context(), id, number)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s chapter %s of #%d %s (%d unique chapters)\n",
				done, number, b.ID, b.Title, b.UniqueChapterCount)
			return nil
		},
	}
}

func newMaskCommands(ctx *commandContext) []*cobra.Command {
	restoreVersion := &cobra.Command{
		Use:   "restore-version <id> <url>",
		Short: "Make a deleted chapter version visible again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookmarkID(args[0])
			if err != nil {
				return err
			}
			app, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			b, err := app.Store().RestoreVersion(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s on #%d %s\n", args[1], b.ID, b.Title)
			return nil
		},
	}

	return []*cobra.Command{
		newNumberCommand(ctx, "exclude", "Hide every version of a chapter", "Excluded",
			(*store.Store).ExcludeChapter),
		newNumberCommand(ctx, "restore", "Lift the exclusion of a chapter", "Restored",
			(*store.Store).RestoreChapter),
		restoreVersion,
	}
}

func newAckCommand(ctx *commandContext) *cobra.Command {
	return newNumberCommand(ctx, "ack", "Acknowledge a pending chapter update", "Acknowledged update of",
		(*store.Store).AcknowledgeUpdate)
}

func sortedUpdateNumbers(b *models.Bookmark) []chapter.Number {
	numbers := make([]chapter.Number, 0, len(b.PendingUpdatedChapters))
	for n := range b.PendingUpdatedChapters {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)
	return numbers
}
