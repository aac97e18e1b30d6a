package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/pricematch/internal/debug"
	"github.com/standardbeagle/pricematch/internal/ingest"
	"github.com/standardbeagle/pricematch/internal/matching"
	"github.com/standardbeagle/pricematch/internal/types"
)

// matchOutput is the JSON document written by match --json
type matchOutput struct {
	Records []types.MatchRecord `json:"records"`
	Summary matching.Summary    `json:"summary"`
}

func matchCommand() *cli.Command {
	return &cli.Command{
		Name:    "match",
		Aliases: []string{"m"},
		Usage:   "Resolve every survey item to a price-book entry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "survey",
				Aliases:  []string{"s"},
				Usage:    "Survey file (.json or .yaml)",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "catalog",
				Aliases:  []string{"p"},
				Usage:    "Price-book file or glob (e.g. 'prices/**/*.tsv'), repeatable",
				Required: true,
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "no-semantic",
				Usage: "Skip the semantic reranker",
			},
			&cli.BoolFlag{
				Name:  "no-learning",
				Usage: "Ignore learned corrections",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Concurrent items (0 = number of CPUs)",
			},
		},
		Action: matchAction,
	}
}

func matchAction(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	if c.Bool("no-semantic") {
		cfg.Semantic.Enabled = false
	}
	if c.Bool("no-learning") {
		cfg.Learning.Enabled = false
	}
	if c.IsSet("workers") {
		cfg.Performance.Workers = c.Int("workers")
	}

	survey, err := ingest.LoadSurvey(c.String("survey"))
	if err != nil {
		return err
	}
	catalog, err := ingest.LoadCatalog(c.StringSlice("catalog")...)
	if err != nil {
		return err
	}

	eng, err := newEngine(c.Context, cfg, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	start := time.Now()
	records, err := eng.resolver.Resolve(c.Context, survey, catalog)
	if err != nil {
		return err
	}
	debug.LogMatch("resolved %d items against %d entries in %v", len(records), len(catalog), time.Since(start))
	if eng.adapter != nil {
		s := eng.adapter.Stats()
		debug.LogRerank("calls=%d cache_hits=%d verdicts=%d failures=%v", s.Calls, s.CacheHits, s.Verdicts, s.Failures)
	}

	w := c.App.Writer
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}

	summary := matching.Summarize(records)
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(matchOutput{Records: records, Summary: summary})
	}
	return writeMatchTable(w, records, summary)
}

func writeMatchTable(w io.Writer, records []types.MatchRecord, s matching.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOM\tITEM\tQTY\tUNIT\tCODE\tMATCH\tCONF\tTYPE\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			r.Room,
			truncate(r.Item.Description, 40),
			strconv.FormatFloat(r.Item.Quantity, 'f', -1, 64),
			r.Item.Unit,
			r.Match.Code,
			truncate(r.Match.Description, 40),
			r.Confidence,
			r.MatchType,
			r.Status,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d items: %d high, %d medium, %d low confidence; %d need review\n",
		s.Total, s.High, s.Medium, s.Low, s.NeedsReview)
	var parts []string
	for _, mt := range []types.MatchType{types.MatchTypeLearned, types.MatchTypeSemantic, types.MatchTypeLexical, types.MatchTypeManual} {
		if n := s.ByType[mt]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", mt, n))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "by type: %s\n", strings.Join(parts, " "))
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
