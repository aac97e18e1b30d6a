package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/pricematch/internal/corrections"
	"github.com/standardbeagle/pricematch/internal/ingest"
	"github.com/standardbeagle/pricematch/internal/types"
)

func correctCommand() *cli.Command {
	return &cli.Command{
		Name:  "correct",
		Usage: "Record that TEXT/UNIT should resolve to CODE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Survey item description", Required: true},
			&cli.StringFlag{Name: "unit", Aliases: []string{"u"}, Usage: "Survey item unit"},
			&cli.StringFlag{Name: "code", Usage: "Chosen price-book code", Required: true},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Chosen entry description"},
			&cli.StringFlag{Name: "previous-code", Usage: "Code the engine had suggested"},
			&cli.StringFlag{Name: "previous-description", Usage: "Description the engine had suggested"},
			&cli.StringSliceFlag{Name: "catalog", Aliases: []string{"p"}, Usage: "Price book to check CODE against"},
		},
		Action: correctAction,
	}
}

func correctAction(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}

	ev := types.CorrectionEvent{
		Text:                c.String("text"),
		Unit:                c.String("unit"),
		ChosenCode:          c.String("code"),
		ChosenDescription:   c.String("description"),
		PreviousCode:        c.String("previous-code"),
		PreviousDescription: c.String("previous-description"),
	}

	if patterns := c.StringSlice("catalog"); len(patterns) > 0 {
		catalog, err := ingest.LoadCatalog(patterns...)
		if err != nil {
			return err
		}
		entry, ok := findEntry(catalog, ev.ChosenCode)
		if !ok {
			return fmt.Errorf("code %q not found in price book", ev.ChosenCode)
		}
		if ev.ChosenDescription == "" {
			ev.ChosenDescription = entry.Description
		}
		if prev, ok := findEntry(catalog, ev.PreviousCode); ok && ev.PreviousDescription == "" {
			ev.PreviousDescription = prev.Description
		}
	}

	store, err := openStore(c.Context, cfg.Learning.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	outcome, err := store.Record(c.Context, ev)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Correction %s: %q (%s) -> %s\n", outcome, ev.Text, ev.Unit, ev.ChosenCode)
	return nil
}

func findEntry(catalog []types.CatalogEntry, code string) (types.CatalogEntry, bool) {
	if code == "" {
		return types.CatalogEntry{}, false
	}
	for _, e := range catalog {
		if e.Code == code {
			return e, true
		}
	}
	return types.CatalogEntry{}, false
}

func correctionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "corrections",
		Aliases: []string{"learn"},
		Usage:   "Inspect and maintain learned corrections",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show correction and semantic feedback statistics",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
				},
				Action: withStore(statsAction),
			},
			{
				Name:  "export",
				Usage: "Dump all learned corrections",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json or yaml", Value: "json"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to file instead of stdout"},
				},
				Action: withStore(exportAction),
			},
			{
				Name:      "similar",
				Usage:     "List corrections sharing words with TEXT",
				ArgsUsage: "TEXT",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results", Value: 5},
				},
				Action: withStore(similarAction),
			},
			{
				Name:  "clear",
				Usage: "Delete every correction and feedback row",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm deletion"},
				},
				Action: withStore(clearAction),
			},
		},
	}
}

func withStore(action func(*cli.Context, corrections.Admin) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := configFrom(c)
		if err != nil {
			return err
		}
		store, err := openStore(c.Context, cfg.Learning.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		return action(c, store)
	}
}

func statsAction(c *cli.Context, store corrections.Admin) error {
	stats, err := store.Statistics(c.Context)
	if err != nil {
		return err
	}
	w := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(w, "Corrections: %d (used %d times)\n", stats.TotalCorrections, stats.TotalUses)
	ai := stats.AIFeedback
	fmt.Fprintf(w, "Semantic suggestions: %d reviewed, %d accepted (%.1f%%), avg confidence %.2f\n",
		ai.TotalSuggestions, ai.Accepted, ai.AcceptanceRate, ai.AvgConfidence)
	if len(stats.Top) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	return writeCorrections(c, stats.Top)
}

func writeCorrections(c *cli.Context, list []types.LearnedCorrection) error {
	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEXT\tUNIT\tCODE\tDESCRIPTION\tFREQ\tLAST USED")
	for _, lc := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			truncate(lc.Text, 40), lc.Unit, lc.Code, truncate(lc.Description, 40),
			lc.Frequency, lc.LastUsed.Format("2006-01-02"))
	}
	return tw.Flush()
}

func exportAction(c *cli.Context, store corrections.Admin) error {
	list, err := store.Export(c.Context)
	if err != nil {
		return err
	}
	if list == nil {
		list = []types.LearnedCorrection{}
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

	switch c.String("format") {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", c.String("format"))
	}
}

func similarAction(c *cli.Context, store corrections.Admin) error {
	text := c.Args().First()
	if text == "" {
		return errors.New("similar needs TEXT")
	}
	list, err := store.Similar(c.Context, text, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(c.App.Writer, "No corrections similar to %q\n", text)
		return nil
	}
	return writeCorrections(c, list)
}

func clearAction(c *cli.Context, store corrections.Admin) error {
	if !c.Bool("yes") {
		return errors.New("refusing to clear corrections without --yes")
	}
	if err := store.Clear(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "All corrections cleared")
	return nil
}
