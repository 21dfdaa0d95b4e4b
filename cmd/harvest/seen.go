package harvest

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"transcript_harvester/internal/db"
)

func newSeenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seen",
		Short: "Show what the store already holds",
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

			seen, err := store.LoadSeen(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Backend", "Listing Rows", "Distinct URLs", "Article Rows"})
			t.AppendRow(table.Row{d.cfg.Store.Backend, stats.Listings, seen.Len(), stats.Articles})
			t.Render()

			mongoStore, ok := store.(*db.MongoStore)
			if !ok {
				return nil
			}

			runs, err := mongoStore.RunStats(cmd.Context())
			if err != nil {
				return err
			}

			rt := table.NewWriter()
			rt.SetOutputMirror(os.Stdout)
			rt.SetStyle(table.StyleLight)
			rt.AppendHeader(table.Row{"Run", "Articles", "With Ticker", "Harvested At"})
			for _, r := range runs {
				rt.AppendRow(table.Row{r["_id"], r["articles"], r["with_ticker"], r["harvested_at"]})
			}
			rt.Render()
			return nil
		},
	}
}
