// Package ingest loads surveys and price-book catalogs from disk.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

var (
	ErrMissingDescription = errors.New("work item has no description")
	ErrUnknownFormat      = errors.New("unknown file format")
)

// Format is a file encoding understood by the loaders
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTSV  Format = "tsv"
	FormatCSV  Format = "csv"
)

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".tsv", ".tab", ".txt":
		return FormatTSV, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
}

// LoadSurvey reads a JSON or YAML survey. Quantities <= 0 become 1; an item
// without a description is an InputError.
func LoadSurvey(path string) (types.Survey, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return types.Survey{}, perrors.NewInputError(path, "", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Survey{}, perrors.NewInputError(path, "", err)
	}
	return ParseSurvey(data, format, path)
}

// ParseSurvey decodes survey data. source only labels errors.
func ParseSurvey(data []byte, format Format, source string) (types.Survey, error) {
	var survey types.Survey
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &survey); err != nil {
			return types.Survey{}, perrors.NewInputError(source, "", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &survey); err != nil {
			return types.Survey{}, perrors.NewInputError(source, "", err)
		}
	default:
		return types.Survey{}, perrors.NewInputError(source, "", fmt.Errorf("%w for surveys: %s", ErrUnknownFormat, format))
	}

	for ri := range survey.Rooms {
		room := &survey.Rooms[ri]
		room.Name = strings.TrimSpace(room.Name)
		for ii := range room.Items {
			item := &room.Items[ii]
			item.Description = strings.TrimSpace(item.Description)
			item.Unit = strings.TrimSpace(item.Unit)
			if item.Description == "" {
				return types.Survey{}, perrors.NewInputError(source,
					fmt.Sprintf("rooms[%d].items[%d]", ri, ii), ErrMissingDescription)
			}
			if item.Quantity <= 0 {
				item.Quantity = 1
			}
		}
	}
	return survey, nil
}
