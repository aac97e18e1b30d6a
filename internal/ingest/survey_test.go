package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/standardbeagle/pricematch/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSurvey_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "opname.json", `{
  "rooms": [
    {"name": "Woonkamer", "items": [
      {"description": "behang verwijderen", "quantity": 32.5, "unit": "m2"},
      {"description": "plafond witten", "quantity": 0, "unit": "m2", "extra": true}
    ]},
    {"name": "Keuken", "items": []}
  ]
}`)

	survey, err := LoadSurvey(path)
	require.NoError(t, err)
	require.Len(t, survey.Rooms, 2)
	assert.Equal(t, 2, survey.ItemCount())
	assert.Equal(t, "Woonkamer", survey.Rooms[0].Name)
	assert.InDelta(t, 32.5, survey.Rooms[0].Items[0].Quantity, 1e-9)
	assert.InDelta(t, 1.0, survey.Rooms[0].Items[1].Quantity, 1e-9, "non-positive quantity defaults to 1")
}

func TestLoadSurvey_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "opname.yaml", `
rooms:
  - name: Badkamer
    items:
      - description: "  tegels zetten "
        quantity: 6
        unit: m²
      - description: kitvoeg vervangen
        unit: m1
`)

	survey, err := LoadSurvey(path)
	require.NoError(t, err)
	require.Len(t, survey.Rooms[0].Items, 2)
	assert.Equal(t, "tegels zetten", survey.Rooms[0].Items[0].Description)
	assert.Equal(t, "m²", survey.Rooms[0].Items[0].Unit)
	assert.InDelta(t, 1.0, survey.Rooms[0].Items[1].Quantity, 1e-9)
}

func TestLoadSurvey_MissingDescription(t *testing.T) {
	path := writeFile(t, t.TempDir(), "opname.json", `{"rooms":[{"name":"Hal","items":[{"description":"deur afhangen"},{"description":"  ","unit":"stu"}]}]}`)

	_, err := LoadSurvey(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingDescription))
	var ierr *perrors.InputError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "rooms[0].items[1]", ierr.Location)
}

func TestLoadSurvey_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSurvey(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = LoadSurvey(writeFile(t, dir, "opname.docx", "x"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = LoadSurvey(writeFile(t, dir, "broken.json", "{"))
	var ierr *perrors.InputError
	assert.True(t, errors.As(err, &ierr))
}
