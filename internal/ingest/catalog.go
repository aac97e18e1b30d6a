package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/pricematch/internal/debug"
	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

// LoadCatalog loads every file matched by patterns (plain paths or
// doublestar globs) and merges them in order. Rows without a code are
// skipped; a repeated code replaces the earlier entry in place.
func LoadCatalog(patterns ...string) ([]types.CatalogEntry, error) {
	files, err := expandPatterns(patterns)
	if err != nil {
		return nil, err
	}

	var catalog []types.CatalogEntry
	index := make(map[string]int)
	for _, path := range files {
		entries, err := loadCatalogFile(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if pos, dup := index[e.Code]; dup {
				debug.Log("ingest", "duplicate code %s in %s replaces earlier entry", e.Code, path)
				catalog[pos] = e
				continue
			}
			index[e.Code] = len(catalog)
			catalog = append(catalog, e)
		}
	}
	debug.Log("ingest", "loaded %d catalog entries from %d files", len(catalog), len(files))
	return catalog, nil
}

func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		var matches []string
		if strings.ContainsAny(pattern, "*?[{") {
			m, err := doublestar.FilepathGlob(pattern)
			if err != nil {
				return nil, perrors.NewInputError(pattern, "", err)
			}
			if len(m) == 0 {
				return nil, perrors.NewInputError(pattern, "", fmt.Errorf("pattern matched no files"))
			}
			sort.Strings(m)
			matches = m
		} else {
			matches = []string{pattern}
		}
		for _, f := range matches {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files, nil
}

func loadCatalogFile(path string) ([]types.CatalogEntry, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, perrors.NewInputError(path, "", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.NewInputError(path, "", err)
	}
	defer f.Close()
	return ParseCatalog(f, format, path)
}

// ParseCatalog decodes one catalog file. source only labels errors.
func ParseCatalog(r io.Reader, format Format, source string) ([]types.CatalogEntry, error) {
	switch format {
	case FormatJSON, FormatYAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, perrors.NewInputError(source, "", err)
		}
		var entries []types.CatalogEntry
		if format == FormatJSON {
			err = json.Unmarshal(data, &entries)
		} else {
			err = yaml.Unmarshal(data, &entries)
		}
		if err != nil {
			return nil, perrors.NewInputError(source, "", err)
		}
		out := entries[:0]
		for i, e := range entries {
			e.Code = strings.TrimSpace(e.Code)
			if e.Code == "" {
				debug.Log("ingest", "%s: entry %d has no code, skipped", source, i)
				continue
			}
			if e.OfferDescription == "" {
				e.OfferDescription = e.Description
			}
			out = append(out, e)
		}
		return out, nil
	case FormatTSV:
		return parseDelimited(r, '\t', source)
	case FormatCSV:
		return parseDelimited(r, 0, source)
	}
	return nil, perrors.NewInputError(source, "", fmt.Errorf("%w: %s", ErrUnknownFormat, format))
}

type column int

const (
	colUnknown column = iota
	colCode
	colDescription
	colUnit
	colMaterial
	colLabor
	colUnitPrice
	colTotalExcl
	colTotalIncl
	colOffer
)

// classifyHeader maps a price-book export header, or its English alias,
// onto a column.
func classifyHeader(h string) column {
	u := strings.ToUpper(strings.TrimSpace(h))
	switch {
	case strings.Contains(u, "CODERING"), u == "CODE":
		return colCode
	case strings.Contains(u, "OMSCHRIJVING OFFERTE"), u == "OFFER DESCRIPTION", u == "OFFER_DESCRIPTION":
		return colOffer
	case strings.Contains(u, "OMSCHRIJVING"), u == "DESCRIPTION":
		return colDescription
	case u == "EENHEID", u == "UNIT":
		return colUnit
	case strings.Contains(u, "MATRIAAL"), strings.Contains(u, "MATERIAAL"), strings.HasPrefix(u, "MATERIAL"):
		return colMaterial
	case strings.Contains(u, "UREN PER STUK"), strings.HasPrefix(u, "LABOR"), strings.HasPrefix(u, "LABOUR"), u == "HOURS":
		return colLabor
	case strings.Contains(u, "PRIJS PER STUK"), u == "UNIT PRICE", u == "UNIT_PRICE", u == "PRICE":
		return colUnitPrice
	case strings.Contains(u, "TOTAAL") && strings.Contains(u, "EXCL"), u == "TOTAL EXCL", u == "TOTAL_EXCL_TAX", u == "TOTAL":
		return colTotalExcl
	case strings.Contains(u, "TOTAAL") && strings.Contains(u, "INCL"), u == "TOTAL INCL", u == "TOTAL_INCL_TAX":
		return colTotalIncl
	}
	return colUnknown
}

// parseDelimited reads a TSV or CSV export. delim 0 sniffs ';' or ','
// from the header line.
func parseDelimited(r io.Reader, delim rune, source string) ([]types.CatalogEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, perrors.NewInputError(source, "", err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	if delim == 0 {
		delim = sniffDelimiter(text)
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, perrors.NewInputError(source, "line 1", err)
	}

	cols := make([]column, len(header))
	hasCode := false
	for i, h := range header {
		cols[i] = classifyHeader(h)
		hasCode = hasCode || cols[i] == colCode
	}
	if !hasCode {
		return nil, perrors.NewInputError(source, "line 1", fmt.Errorf("no code column in header %q", header))
	}

	var entries []types.CatalogEntry
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, perrors.NewInputError(source, "", err)
		}
		line, _ := cr.FieldPos(0)

		e := types.CatalogEntry{RowNum: line}
		for i, field := range record {
			if i >= len(cols) {
				break
			}
			field = strings.TrimSpace(field)
			switch cols[i] {
			case colCode:
				e.Code = field
			case colDescription:
				e.Description = field
			case colUnit:
				e.Unit = field
			case colOffer:
				e.OfferDescription = field
			case colMaterial:
				e.MaterialCost = amount(field, source, line)
			case colLabor:
				e.LaborCost = amount(field, source, line)
			case colUnitPrice:
				e.UnitPrice = amount(field, source, line)
			case colTotalExcl:
				e.TotalExclTax = amount(field, source, line)
			case colTotalIncl:
				e.TotalInclTax = amount(field, source, line)
			}
		}
		if e.Code == "" {
			continue
		}
		if e.OfferDescription == "" {
			e.OfferDescription = e.Description
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func sniffDelimiter(text string) rune {
	first := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		first = text[:i]
	}
	switch {
	case strings.Count(first, "\t") > 0:
		return '\t'
	case strings.Count(first, ";") > strings.Count(first, ","):
		return ';'
	}
	return ','
}

func amount(field, source string, line int) float64 {
	v, err := ParseEuro(field)
	if err != nil {
		debug.Log("ingest", "%s line %d: %v, using 0", source, line, err)
		return 0
	}
	return v
}

// ParseEuro parses price-book amounts such as "€ 6,285.20", "-€ 249.78",
// "€ 12,50" and "1.234,56". Empty input is 0.
func ParseEuro(s string) (float64, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, nil
	}
	negative := strings.Contains(v, "-")
	v = strings.NewReplacer("€", "", "EUR", "", " ", "", "\u00a0", "", "-", "").Replace(v)
	if v == "" {
		return 0, nil
	}

	dot, comma := strings.LastIndexByte(v, '.'), strings.LastIndexByte(v, ',')
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		// 1.234,56
		v = strings.ReplaceAll(v, ".", "")
		v = strings.Replace(v, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		// 6,285.20
		v = strings.ReplaceAll(v, ",", "")
	case comma >= 0 && strings.Count(v, ",") == 1 && len(v)-comma-1 <= 2:
		// 12,50
		v = strings.Replace(v, ",", ".", 1)
	case comma >= 0:
		// 6,285
		v = strings.ReplaceAll(v, ",", "")
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if negative {
		f = -f
	}
	return f, nil
}
