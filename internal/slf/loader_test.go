package slf

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const structuredJSON = `{
  "Non-directional": {
    "PFA_NS": {
      "story0": {"edp": [0.01, 0.02], "loss": [100, 200]},
      "story1": {"edp": [0.01, 0.02], "loss": [100, 200]}
    }
  },
  "Directional": {
    "IDR": {
      "dir1": {"story1": {"edp": [0.005, 0.01], "loss": [30, 70]}},
      "dir2": {"story1": {"edp": [0.005, 0.01], "loss": [10, 50]}}
    }
  }
}`

func TestLoadStructuredJSON(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "slfs.json", structuredJSON)
	raw, err := Load(path, 2)
	require.NoError(t, err)

	st, ok := raw.(*StructuredTable)
	require.True(t, ok)

	nd := st.Groups[GroupNonDirectional]["PFA_NS"]
	require.NotNil(t, nd.Stories)
	assert.Nil(t, nd.Directions)
	assert.Equal(t, []float64{100, 200}, nd.Stories[0].Loss)
	assert.Equal(t, []float64{0.01, 0.02}, nd.Stories[1].EDP)

	dir := st.Groups["Directional"]["IDR"]
	require.NotNil(t, dir.Directions)
	assert.Nil(t, dir.Stories)
	assert.Equal(t, []float64{30, 70}, dir.Directions[1][1].Loss)
	assert.Equal(t, []float64{10, 50}, dir.Directions[2][1].Loss)
}

func TestLoadStructuredYAML(t *testing.T) {
	t.Parallel()

	content := `
Non-directional:
  IDR_S:
    floor0:
      edp: [0.01, 0.02]
      loss: [50, 150]
Directional:
  IDR:
    dir1:
      story1:
        edp: [0.005]
        loss: [40]
`
	path := writeFixture(t, "slfs.yaml", content)
	raw, err := Load(path, 2)
	require.NoError(t, err)

	st, ok := raw.(*StructuredTable)
	require.True(t, ok)
	assert.Equal(t, []float64{50, 150}, st.Groups[GroupNonDirectional]["IDR_S"].Stories[0].Loss)
	assert.Equal(t, []float64{40}, st.Groups["Directional"]["IDR"].Directions[1][1].Loss)
}

func TestLoadStructuredErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"not json", "slfs.json", "not json at all"},
		{"bad story label", "slfs.json", `{"Non-directional": {"PFA_NS": {"roof": {"edp": [0.1], "loss": [1]}}}}`},
		{"colliding story labels", "slfs.json", `{"Non-directional": {"PFA_NS": {
			"story2": {"edp": [0.1], "loss": [1]},
			"floor2": {"edp": [0.1], "loss": [1]}}}}`},
		{"bad direction label", "slfs.json", `{"Directional": {"IDR": {"north": {"story1": {"edp": [0.1], "loss": [1]}}}}}`},
		{"missing direction 1", "slfs.json", `{"Directional": {"IDR": {"dir2": {"story1": {"edp": [0.1], "loss": [1]}}}}}`},
		{"bad yaml", "slfs.yaml", "{:::"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeFixture(t, tt.file, tt.content)
			_, err := Load(path, 2)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrSource))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), 2)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSource))
}

func writeLegacyXLSX(t *testing.T, cols map[string][]float64, order []string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("slf")
	require.NoError(t, err)

	header := sheet.AddRow()
	rows := 0
	for _, name := range order {
		header.AddCell().SetString(name)
		if len(cols[name]) > rows {
			rows = len(cols[name])
		}
	}
	for i := 0; i < rows; i++ {
		row := sheet.AddRow()
		for _, name := range order {
			cell := row.AddCell()
			if i < len(cols[name]) {
				cell.SetString(strconv.FormatFloat(cols[name][i], 'g', -1, 64))
			}
		}
	}

	path := filepath.Join(t.TempDir(), "slf.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadLegacyXLSX(t *testing.T) {
	t.Parallel()

	cols := map[string][]float64{
		"E_S_IDR":  {10, 40},
		"E_NS_IDR": {5, 20},
		"E_NS_PFA": {2, 8},
		"IDR":      {0.005, 0.01},
		"PFA":      {0.1, 0.4},
	}
	order := []string{"E_S_IDR", "E_NS_IDR", "E_NS_PFA", "IDR", "PFA"}
	path := writeLegacyXLSX(t, cols, order)

	raw, err := Load(path, 2)
	require.NoError(t, err)

	lt, ok := raw.(*LegacyTable)
	require.True(t, ok)

	// maxima 40 + 20 + 8 = 68; each loss column collapses to
	// value / (68 * storyCount), the demand columns are untouched.
	const denom = 68.0 * 2
	assert.InDelta(t, 10/denom, lt.Columns["E_S_IDR"][0], 1e-12)
	assert.InDelta(t, 40/denom, lt.Columns["E_S_IDR"][1], 1e-12)
	assert.InDelta(t, 20/denom, lt.Columns["E_NS_IDR"][1], 1e-12)
	assert.InDelta(t, 8/denom, lt.Columns["E_NS_PFA"][1], 1e-12)
	assert.Equal(t, []float64{0.005, 0.01}, lt.Columns["IDR"])
	assert.Equal(t, []float64{0.1, 0.4}, lt.Columns["PFA"])

	// End to end through the legacy builder.
	table, err := Build(lt, Options{StoryCount: 2})
	require.NoError(t, err)
	require.Contains(t, table.Flat, "IDR_S")
	assert.InDelta(t, 40/denom, table.Flat["IDR_S"].At(0.01), 1e-12)
}

func TestLoadLegacyMissingColumn(t *testing.T) {
	t.Parallel()

	cols := map[string][]float64{
		"E_S_IDR": {10, 40},
		"IDR":     {0.005, 0.01},
	}
	path := writeLegacyXLSX(t, cols, []string{"E_S_IDR", "IDR"})

	_, err := Load(path, 2)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSource))
}

func TestLoadLegacyStoryCountValidation(t *testing.T) {
	t.Parallel()

	_, err := Load("whatever.xlsx", 0)
	assert.Error(t, err)
}
