// Package slf loads storey-loss-function data and builds the normalized
// loss-vs-demand curve table consumed by loss-estimation analysis.
package slf

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/epicentre-risk/slf-cli/internal/interp"
)

// GroupNonDirectional is the directionality class whose components are
// damaged by response in any direction. Entries under it carry no
// direction axis; every other class is directional.
const GroupNonDirectional = "Non-directional"

// NonDirectional is the pseudo-direction under which non-directional
// entries are keyed in built tables.
const NonDirectional = 0

// Series is one leaf of the raw table: paired demand and loss samples
// for a single story or floor.
type Series struct {
	EDP  []float64 `json:"edp" yaml:"edp"`
	Loss []float64 `json:"loss" yaml:"loss"`
}

// StorySet maps canonical story index to its series.
type StorySet map[int]Series

// DemandParam holds the per-story series for one demand-parameter key.
// Exactly one of Stories and Directions is set: Stories for
// non-directional groups, Directions (keyed 1..n) for directional ones.
type DemandParam struct {
	Stories    StorySet
	Directions map[int]StorySet
}

// RawTable is the loader output, one of two layouts. The variant is
// fixed at load time; Build switches on it exactly once.
type RawTable interface {
	isRawTable()
}

// StructuredTable is the nested raw-table variant:
// component group -> demand-parameter key -> [direction ->] story.
// Story labels and direction labels are already parsed to integers.
type StructuredTable struct {
	Groups map[string]map[string]DemandParam
}

// LegacyTable is the flat spreadsheet variant: named columns of samples,
// already renormalized by the loader. Limited: no story or direction
// nesting is recoverable from it.
type LegacyTable struct {
	Columns map[string][]float64
}

func (*StructuredTable) isRawTable() {}
func (*LegacyTable) isRawTable()     {}

// Table is the addressable set of loss curves for one building model.
// Structured inputs fill Groups; legacy inputs fill Flat.
type Table struct {
	// Groups is keyed group -> demand parameter -> direction -> story.
	// Non-directional entries sit under direction NonDirectional.
	Groups map[string]map[string]map[int]map[int]*interp.Curve

	// Flat holds legacy-variant curves keyed "<edp-suffix>_<component-type>".
	Flat map[string]*interp.Curve
}

// Curve returns the curve for the given address. Non-directional groups
// are addressed with direction NonDirectional.
func (t *Table) Curve(group, param string, direction, story int) (*interp.Curve, error) {
	params, ok := t.Groups[group]
	if !ok {
		return nil, eris.Errorf("slf: unknown component group %q", group)
	}
	dirs, ok := params[param]
	if !ok {
		return nil, eris.Errorf("slf: group %q has no demand parameter %q", group, param)
	}
	stories, ok := dirs[direction]
	if !ok {
		return nil, eris.Errorf("slf: %s/%s has no direction %d", group, param, direction)
	}
	c, ok := stories[story]
	if !ok {
		return nil, eris.Errorf("slf: %s/%s direction %d has no story %d", group, param, direction, story)
	}
	return c, nil
}

// Loss evaluates the addressed curve at the given demand value.
func (t *Table) Loss(group, param string, direction, story int, demand float64) (float64, error) {
	c, err := t.Curve(group, param, direction, story)
	if err != nil {
		return 0, err
	}
	return c.At(demand), nil
}

// Leaves counts the curves held by the table, both nested and flat.
func (t *Table) Leaves() int {
	n := len(t.Flat)
	for _, params := range t.Groups {
		for _, dirs := range params {
			for _, stories := range dirs {
				n += len(stories)
			}
		}
	}
	return n
}

// StoryIndex extracts the canonical story index from a story or floor
// label such as "story3" or "floor0". Only the final character is
// significant, matching the upstream SLF file convention; labels with a
// multi-digit trailing index are therefore truncated to their last digit
// (a known limitation of the format).
func StoryIndex(label string) (int, error) {
	if label == "" {
		return 0, eris.New("slf: empty story label")
	}
	c := label[len(label)-1]
	if c < '0' || c > '9' {
		return 0, eris.Errorf("slf: story label %q does not end in a digit", label)
	}
	return int(c - '0'), nil
}

// DirectionIndex extracts the 1-based direction from a label such as
// "dir1" or "dir2".
func DirectionIndex(label string) (int, error) {
	rest, ok := strings.CutPrefix(label, "dir")
	if !ok || rest == "" {
		return 0, eris.Errorf("slf: malformed direction label %q", label)
	}
	n := 0
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, eris.Errorf("slf: malformed direction label %q", label)
		}
		n = n*10 + int(r-'0')
	}
	if n < 1 {
		return 0, eris.Errorf("slf: direction label %q must be 1-based", label)
	}
	return n, nil
}
