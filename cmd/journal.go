package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/viewavocats/estimia/internal/notify"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recent submissions recorded in the notification journal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Notify.JournalPath == "" {
			return eris.New("journal: notify.journal_path is not set")
		}
		ctx := cmd.Context()

		j, err := openJournal(ctx, cfg.Notify.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		recs, err := j.Recent(ctx, notify.Kind(kind), limit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}
		formatJournal(os.Stdout, recs)
		return nil
	},
}

func formatJournal(out io.Writer, recs []notify.Record) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tCREATED\tOUTCOME\tPRICE\tQUESTION")
	for _, r := range recs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		price := "-"
		if r.Priced {
			price = fmt.Sprintf("%d", r.Price)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			id, r.Kind, r.CreatedAt.Format("2006-01-02 15:04"), r.Outcome, price, truncate(r.Question, 60))
	}
	w.Flush() //nolint:errcheck
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func init() {
	journalCmd.Flags().String("kind", "", "filter by kind (estimate, contact)")
	journalCmd.Flags().Int("limit", 20, "max number of records to display")
	rootCmd.AddCommand(journalCmd)
}
