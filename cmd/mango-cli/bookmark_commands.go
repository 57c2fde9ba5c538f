package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vrsandeep/mango-shelf/internal/checker"
	"github.com/vrsandeep/mango-shelf/internal/mask"
	"github.com/vrsandeep/mango-shelf/internal/models"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked bookmarks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			bookmarks, err := app.Store().ListBookmarks(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(bookmarks) == 0 {
				fmt.Fprintln(out, "No bookmarks tracked.")
				return nil
			}
			rows := make([][]string, 0, len(bookmarks))
			for _, b := range bookmarks {
				rows = append(rows, []string{
					strconv.FormatInt(b.ID, 10),
					b.Title,
					b.Website,
					strconv.Itoa(b.UniqueChapterCount),
					strconv.Itoa(len(b.DownloadedChapterNumbers)),
					strconv.Itoa(len(b.PendingNewDuplicates) + len(b.PendingUpdatedChapters)),
					formatTime(b.LastReconciledAt),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Title", "Website", "Chapters", "Downloaded", "Pending", "Last Checked"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}))
			return nil
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a bookmark's chapters and pending changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookmarkID(args[0])
			if err != nil {
				return err
			}
			app, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			b, err := app.Store().GetBookmark(cmd.Context(), id)
			if err != nil {
				return err
			}
			printBookmark(cmd.OutOrStdout(), b, all)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include excluded chapters and deleted versions")
	return cmd
}

func printBookmark(out io.Writer, b *models.Bookmark, all bool) {
	fmt.Fprintf(out, "#%d %s\n", b.ID, b.Title)
	fmt.Fprintf(out, "Source:       %s\n", b.SourceURL)
	fmt.Fprintf(out, "Chapters:     %d unique, %d versions\n", b.UniqueChapterCount, b.TotalChapterCount)
	fmt.Fprintf(out, "Last checked: %s\n", formatTime(b.LastReconciledAt))

	masks := mask.Of(b)
	entries := b.Chapters
	if !all {
		entries = masks.Visible(entries)
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Number.String(), e.Title, e.ReleaseGroup, e.URL, entryFlags(b, masks, e)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(out,
			[]string{"#", "Title", "Group", "URL", "Flags"},
			rows,
			[]columnAlignment{alignRight}))
	}

	if dups := b.PendingNewDuplicates.Slice(); len(dups) > 0 {
		labels := make([]string, 0, len(dups))
		for _, n := range dups {
			labels = append(labels, n.String())
		}
		fmt.Fprintf(out, "New duplicates: %s\n", strings.Join(labels, ", "))
	}
	for _, n := range sortedUpdateNumbers(b) {
		ev := b.PendingUpdatedChapters[n]
		fmt.Fprintf(out, "Update: chapter %s %s", n, ev.Kind)
		if ev.OldURL != "" {
			fmt.Fprintf(out, " (was %s)", ev.OldURL)
		}
		fmt.Fprintf(out, " -> %s\n", strings.Join(ev.NewURLs.Slice(), ", "))
	}
}

func entryFlags(b *models.Bookmark, masks mask.Masks, e models.ChapterEntry) string {
	var flags []string
	if urls, ok := b.DownloadedVersionURLs[e.Number]; ok && urls.Has(e.URL) {
		flags = append(flags, "downloaded")
	}
	if b.DuplicateChapters[e.Number] > 1 {
		flags = append(flags, "duplicate")
	}
	if e.URLChanged {
		flags = append(flags, "url changed")
	}
	if e.IsOldVersion {
		flags = append(flags, "old version")
	}
	if e.RemovedFromRemote {
		flags = append(flags, "removed")
	}
	if masks.IsExcluded(e.Number) {
		flags = append(flags, "excluded")
	}
	if masks.IsDeleted(e.URL) {
		flags = append(flags, "deleted")
	}
	return strings.Join(flags, ", ")
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Track a series by its source URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			b, err := app.Checker().Track(cmd.Context(), args[0], title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking #%d %s (%s)\n", b.ID, b.Title, b.Website)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Display title (defaults to the URL)")
	return cmd
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "check [<id>]",
		Short: "Fetch a bookmark's chapter list from its source and reconcile it",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("use either an id or --all")
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("requires a bookmark id or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if all {
				summary, err := app.Checker().CheckAll(cmd.Context(), nil)
				if err != nil {
					return err
				}
				printSummary(out, summary)
				return nil
			}

			id, err := parseBookmarkID(args[0])
			if err != nil {
				return err
			}
			b, report, err := app.Checker().CheckBookmark(cmd.Context(), id)
			if err != nil && b == nil {
				return err
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			printReport(out, b, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Check every bookmark")
	return cmd
}

func printSummary(out io.Writer, s checker.Summary) {
	fmt.Fprintln(out, renderTable(out,
		[]string{"Total", "Checked", "Changed", "Skipped", "Failed"},
		[][]string{{
			strconv.Itoa(s.Total), strconv.Itoa(s.Checked), strconv.Itoa(s.Changed),
			strconv.Itoa(s.Skipped), strconv.Itoa(s.Failed),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight}))
}

func printReport(out io.Writer, b *models.Bookmark, report models.ChangeReport) {
	fmt.Fprintf(out, "#%d %s: %d unique chapters, %d versions\n", b.ID, b.Title, b.UniqueChapterCount, b.TotalChapterCount)
	if report.IsEmpty() {
		fmt.Fprintln(out, "No changes.")
		return
	}
	rows := make([][]string, 0)
	for _, n := range report.NewDuplicates {
		rows = append(rows, []string{"new duplicate", n.String(), fmt.Sprintf("%d versions", b.DuplicateChapters[n])})
	}
	for _, ev := range report.UpdatedChapters {
		rows = append(rows, []string{string(ev.Kind), ev.Number.String(), strings.Join(ev.NewURLs.Slice(), ", ")})
	}
	for _, n := range report.RemovedFromRemoteNumbers {
		rows = append(rows, []string{"removed from source", n.String(), ""})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Change", "#", "Detail"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
