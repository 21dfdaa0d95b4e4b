package harvest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"transcript_harvester/internal/app"
	"transcript_harvester/internal/models"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Discover new listing records, then fetch and store their transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}

			store, err := d.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer d.closeStore(store)

			h, err := app.NewHarvester(d.cfg, store, d.log, d.runID)
			if err != nil {
				return err
			}

			report, err := h.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("harvest: %w", err)
			}

			renderReport(os.Stdout, report)
			return nil
		},
	}
}

func newDiscoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Walk the listing and store new listing records only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}

			store, err := d.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer d.closeStore(store)

			h, err := app.NewHarvester(d.cfg, store, d.log, d.runID)
			if err != nil {
				return err
			}

			walk, err := h.Discover(cmd.Context())
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}

			renderWalk(os.Stdout, walk)
			return nil
		},
	}
}

func renderReport(w io.Writer, r *models.RunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run " + r.RunID)
	t.AppendHeader(table.Row{"Stop Reason", "Pages", "Listings", "Articles", "Degraded", "Skipped Anchors", "Duration"})
	t.AppendRow(table.Row{
		r.Reason,
		r.Pages,
		r.ListingsAppended,
		r.ArticlesAppended,
		r.ArticlesDegraded,
		r.SkippedAnchors,
		r.Duration.Round(time.Millisecond),
	})
	t.Render()
}

func renderWalk(w io.Writer, walk *models.WalkResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%d pages, stopped: %s", walk.Pages, walk.Reason))
	t.AppendHeader(table.Row{"#", "Date", "Title", "URL"})
	for i, rec := range walk.Records {
		t.AppendRow(table.Row{i + 1, rec.TranscribedDate, rec.Title, rec.URL})
	}
	t.Render()
}
