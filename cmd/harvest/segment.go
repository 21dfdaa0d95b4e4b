package harvest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"transcript_harvester/internal/article"
	"transcript_harvester/internal/models"
)

func newSegmentCommand() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "segment <file>",
		Short: "Segment a saved transcript page and print its sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}

			markup, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if url == "" {
				url = args[0]
			}

			seg := article.NewSegmenter(d.cfg.Source.Article, d.cfg.Source.PublicationYears)
			rec, err := seg.Segment(url, string(markup))

			var perr *article.ParseError
			if err != nil && !errors.As(err, &perr) {
				return err
			}
			if perr != nil {
				d.log.Warn("page degraded to empty record", "missing", perr.Missing)
			}

			renderArticle(os.Stdout, rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "url to record (default: the file path)")
	return cmd
}

func renderArticle(w io.Writer, rec models.ArticleRecord) {
	date := ""
	if rec.Date != nil {
		date = *rec.Date
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%s (%s) %s", rec.Name, rec.Ticker, date))
	t.AppendHeader(table.Row{"Section", "Chars", "Preview"})

	keys := make([]string, 0, len(rec.Sections))
	for k := range rec.Sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		body := rec.Sections[k]
		t.AppendRow(table.Row{k, len(body), text.Trim(body, 60)})
	}
	t.Render()
}
