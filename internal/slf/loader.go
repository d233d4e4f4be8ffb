package slf

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrSource marks an unreadable or malformed input source.
var ErrSource = eris.New("slf: malformed or unreadable source")

// Legacy loss columns: story-sensitive structural, story-sensitive
// non-structural, floor-sensitive non-structural.
var legacyLossColumns = []string{"E_S_IDR", "E_NS_IDR", "E_NS_PFA"}

// Load reads the raw loss table at path. The format indicator selects
// the variant: an .xlsx extension selects the legacy flat-table path
// (renormalized in place using storyCount), anything else the
// structured path (.yaml/.yml decoded as YAML, otherwise JSON), which
// is passed through untransformed. Variant selection never inspects
// content.
func Load(path string, storyCount int) (RawTable, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return loadLegacy(path, storyCount)
	}
	return loadStructured(path)
}

func loadLegacy(path string, storyCount int) (*LegacyTable, error) {
	if storyCount <= 0 {
		return nil, eris.Errorf("slf: story count must be positive, got %d", storyCount)
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(ErrSource, "open xlsx %s: %v", path, err)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Wrap(ErrSource, "xlsx has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.Wrap(ErrSource, "xlsx has no data rows")
	}

	names := make([]string, len(sheet.Rows[0].Cells))
	for j, cell := range sheet.Rows[0].Cells {
		names[j] = strings.TrimSpace(cell.String())
	}

	cols := make(map[string][]float64, len(names))
	for _, row := range sheet.Rows[1:] {
		for j, cell := range row.Cells {
			if j >= len(names) || names[j] == "" {
				continue
			}
			raw := strings.TrimSpace(cell.String())
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, eris.Wrapf(ErrSource, "column %s: non-numeric cell %q", names[j], raw)
			}
			cols[names[j]] = append(cols[names[j]], v)
		}
	}

	t := &LegacyTable{Columns: cols}
	if err := renormalizeLegacy(t, storyCount); err != nil {
		return nil, err
	}

	zap.L().Debug("loaded legacy loss table",
		zap.String("path", path),
		zap.Int("columns", len(cols)),
		zap.Int("stories", storyCount),
	)
	return t, nil
}

// renormalizeLegacy rewrites the three loss columns in place: each
// series is scaled by its share of the combined peak losses divided by
// its own peak, times a uniform per-story weight of 1/storyCount.
func renormalizeLegacy(t *LegacyTable, storyCount int) error {
	maxima := make(map[string]float64, len(legacyLossColumns))
	var maxTotal float64
	for _, name := range legacyLossColumns {
		col, ok := t.Columns[name]
		if !ok || len(col) == 0 {
			return eris.Wrapf(ErrSource, "legacy table is missing loss column %s", name)
		}
		m := maxOf(col)
		if m <= 0 {
			return eris.Wrapf(ErrSource, "loss column %s has no positive values", name)
		}
		maxima[name] = m
		maxTotal += m
	}

	weight := 1.0 / float64(storyCount)
	for _, name := range legacyLossColumns {
		peak := maxima[name] / maxTotal
		scale := peak / maxima[name] * weight
		col := t.Columns[name]
		for i := range col {
			col[i] *= scale
		}
	}
	return nil
}

func loadStructured(path string) (*StructuredTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(ErrSource, "read %s: %v", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var st *StructuredTable
	if ext == ".yaml" || ext == ".yml" {
		st, err = parseStructuredYAML(data)
	} else {
		st, err = parseStructuredJSON(data)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Debug("loaded structured loss table",
		zap.String("path", path),
		zap.Int("groups", len(st.Groups)),
	)
	return st, nil
}

func parseStructuredJSON(data []byte) (*StructuredTable, error) {
	var root map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, eris.Wrapf(ErrSource, "decode json: %v", err)
	}

	groups := make(map[string]map[string]DemandParam, len(root))
	for g, params := range root {
		out := make(map[string]DemandParam, len(params))
		for k, raw := range params {
			if g == GroupNonDirectional {
				var labeled map[string]Series
				if err := json.Unmarshal(raw, &labeled); err != nil {
					return nil, eris.Wrapf(ErrSource, "%s/%s: %v", g, k, err)
				}
				set, err := storySetFromLabels(g, k, labeled)
				if err != nil {
					return nil, err
				}
				out[k] = DemandParam{Stories: set}
				continue
			}

			var byDir map[string]map[string]Series
			if err := json.Unmarshal(raw, &byDir); err != nil {
				return nil, eris.Wrapf(ErrSource, "%s/%s: %v", g, k, err)
			}
			dirs, err := directionsFromLabels(g, k, byDir)
			if err != nil {
				return nil, err
			}
			out[k] = DemandParam{Directions: dirs}
		}
		groups[g] = out
	}
	return &StructuredTable{Groups: groups}, nil
}

func parseStructuredYAML(data []byte) (*StructuredTable, error) {
	var root map[string]map[string]yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, eris.Wrapf(ErrSource, "decode yaml: %v", err)
	}

	groups := make(map[string]map[string]DemandParam, len(root))
	for g, params := range root {
		out := make(map[string]DemandParam, len(params))
		for k, node := range params {
			if g == GroupNonDirectional {
				var labeled map[string]Series
				if err := node.Decode(&labeled); err != nil {
					return nil, eris.Wrapf(ErrSource, "%s/%s: %v", g, k, err)
				}
				set, err := storySetFromLabels(g, k, labeled)
				if err != nil {
					return nil, err
				}
				out[k] = DemandParam{Stories: set}
				continue
			}

			var byDir map[string]map[string]Series
			if err := node.Decode(&byDir); err != nil {
				return nil, eris.Wrapf(ErrSource, "%s/%s: %v", g, k, err)
			}
			dirs, err := directionsFromLabels(g, k, byDir)
			if err != nil {
				return nil, err
			}
			out[k] = DemandParam{Directions: dirs}
		}
		groups[g] = out
	}
	return &StructuredTable{Groups: groups}, nil
}

// storySetFromLabels parses story/floor labels to canonical indices,
// rejecting collisions (two labels mapping to the same index).
func storySetFromLabels(group, param string, labeled map[string]Series) (StorySet, error) {
	set := make(StorySet, len(labeled))
	for label, s := range labeled {
		idx, err := StoryIndex(label)
		if err != nil {
			return nil, eris.Wrapf(ErrSource, "%s/%s: %v", group, param, err)
		}
		if _, dup := set[idx]; dup {
			return nil, eris.Wrapf(ErrSource, "%s/%s: story label %q collides at index %d", group, param, label, idx)
		}
		set[idx] = s
	}
	return set, nil
}

func directionsFromLabels(group, param string, byDir map[string]map[string]Series) (map[int]StorySet, error) {
	dirs := make(map[int]StorySet, len(byDir))
	for label, labeled := range byDir {
		d, err := DirectionIndex(label)
		if err != nil {
			return nil, eris.Wrapf(ErrSource, "%s/%s: %v", group, param, err)
		}
		set, err := storySetFromLabels(group, param, labeled)
		if err != nil {
			return nil, err
		}
		dirs[d] = set
	}
	if _, ok := dirs[1]; !ok {
		return nil, eris.Wrapf(ErrSource, "%s/%s: directional group is missing direction 1", group, param)
	}
	return dirs, nil
}
