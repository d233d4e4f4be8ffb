package slf

import (
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/epicentre-risk/slf-cli/internal/interp"
)

var (
	// ErrZeroTotalCost marks a normalization request against an
	// inventory whose aggregated component cost is not positive.
	ErrZeroTotalCost = eris.New("slf: total component cost is not positive")

	// ErrShapeMismatch marks a leaf whose demand and loss sample counts
	// differ. Any mismatch aborts the whole build: a partial loss table
	// is unsafe for downstream risk aggregation.
	ErrShapeMismatch = eris.New("slf: demand and loss sample counts differ")
)

// Options configures Build for one building model.
type Options struct {
	// StoryCount is the number of stories. For the legacy variant the
	// per-story weighting was already applied at load time.
	StoryCount int

	// ReplacementCost is the normalization target; required positive
	// when Normalize is set.
	ReplacementCost float64

	// ThreeDimensional gates inclusion of second-direction component
	// costs in the inventory total. Curves are built for every
	// direction present regardless.
	ThreeDimensional bool

	// Normalize scales every loss series by ReplacementCost divided by
	// the total component cost.
	Normalize bool
}

// Build converts a raw loss table into the addressable curve table.
// The variant was fixed at load time; each path is a pure
// transformation of its input.
func Build(raw RawTable, opts Options) (*Table, error) {
	switch v := raw.(type) {
	case *StructuredTable:
		return buildStructured(v, opts)
	case *LegacyTable:
		return buildLegacy(v)
	case nil:
		return nil, eris.New("slf: nil raw table")
	default:
		return nil, eris.Errorf("slf: unsupported raw table type %T", raw)
	}
}

// TotalComponentCost sums the peak loss of every series participating
// in the model. Non-directional series always count. Directional series
// count for direction 1, and direction 2 only when threeDimensional:
// a 2D model deliberately excludes second-direction component costs
// from its inventory total.
func TotalComponentCost(st *StructuredTable, threeDimensional bool) float64 {
	var total float64
	for _, params := range st.Groups {
		for _, p := range params {
			if p.Stories != nil {
				for _, s := range p.Stories {
					total += maxOf(s.Loss)
				}
				continue
			}
			for _, d := range activeDirections(threeDimensional) {
				for _, s := range p.Directions[d] {
					total += maxOf(s.Loss)
				}
			}
		}
	}
	return total
}

func activeDirections(threeDimensional bool) []int {
	if threeDimensional {
		return []int{1, 2}
	}
	return []int{1}
}

func buildStructured(st *StructuredTable, opts Options) (*Table, error) {
	if opts.StoryCount <= 0 {
		return nil, eris.Errorf("slf: story count must be positive, got %d", opts.StoryCount)
	}

	// Phase 1: the inventory total must be complete before the factor
	// is derived or applied anywhere.
	total := TotalComponentCost(st, opts.ThreeDimensional)

	// Phase 2: normalization factor.
	factor := 1.0
	if opts.Normalize {
		if opts.ReplacementCost <= 0 {
			return nil, eris.Errorf("slf: replacement cost must be positive, got %g", opts.ReplacementCost)
		}
		if total <= 0 {
			return nil, eris.Wrapf(ErrZeroTotalCost, "aggregated %g against replacement cost %g", total, opts.ReplacementCost)
		}
		factor = opts.ReplacementCost / total
	}

	// Phase 3: per-leaf curve construction. Leaves are independent, so
	// fitting fans out; each goroutine writes only its own slot.
	type leaf struct {
		group, param     string
		direction, story int
		series           Series
	}
	var leaves []leaf
	for g, params := range st.Groups {
		for k, p := range params {
			if p.Stories != nil {
				for i, s := range p.Stories {
					leaves = append(leaves, leaf{g, k, NonDirectional, i, s})
				}
				continue
			}
			for d, stories := range p.Directions {
				for i, s := range stories {
					leaves = append(leaves, leaf{g, k, d, i, s})
				}
			}
		}
	}

	curves := make([]*interp.Curve, len(leaves))
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for n, lf := range leaves {
		n, lf := n, lf
		eg.Go(func() error {
			c, err := leafCurve(lf.series, factor)
			if err != nil {
				return eris.Wrapf(err, "slf: %s/%s direction %d story %d", lf.group, lf.param, lf.direction, lf.story)
			}
			curves[n] = c
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := &Table{Groups: make(map[string]map[string]map[int]map[int]*interp.Curve, len(st.Groups))}
	for n, lf := range leaves {
		out.put(lf.group, lf.param, lf.direction, lf.story, curves[n])
	}

	zap.L().Info("built loss curve table",
		zap.Int("curves", len(leaves)),
		zap.Float64("total_component_cost", total),
		zap.Float64("factor", factor),
		zap.Bool("normalized", opts.Normalize),
		zap.Bool("three_dimensional", opts.ThreeDimensional),
	)
	return out, nil
}

// buildLegacy emits one flat curve per E_-prefixed loss column. The
// matching demand column is "<edp-suffix>_<component-type>", falling
// back to the bare suffix. No factor applies: the loader already baked
// the legacy normalization into the columns.
func buildLegacy(t *LegacyTable) (*Table, error) {
	out := &Table{Flat: make(map[string]*interp.Curve)}
	for name, col := range t.Columns {
		if !strings.HasPrefix(name, "E_") {
			continue
		}
		suffix, compType, err := splitLegacyName(name)
		if err != nil {
			return nil, err
		}

		key := suffix + "_" + compType
		edp, ok := t.Columns[key]
		if !ok {
			edp, ok = t.Columns[suffix]
		}
		if !ok {
			return nil, eris.Wrapf(ErrSource, "no demand column %s or %s for loss column %s", key, suffix, name)
		}

		c, err := leafCurve(Series{EDP: edp, Loss: col}, 1)
		if err != nil {
			return nil, eris.Wrapf(err, "slf: legacy column %s", name)
		}
		out.Flat[key] = c
	}

	if len(out.Flat) == 0 {
		return nil, eris.Wrap(ErrSource, "no E_-prefixed loss columns")
	}

	zap.L().Info("built legacy loss curve table", zap.Int("curves", len(out.Flat)))
	return out, nil
}

// leafCurve clamps negative losses to zero, anchors both series at the
// origin, scales losses by factor, and fits the interpolant.
func leafCurve(s Series, factor float64) (*interp.Curve, error) {
	if len(s.EDP) != len(s.Loss) {
		return nil, eris.Wrapf(ErrShapeMismatch, "%d demand vs %d loss samples", len(s.EDP), len(s.Loss))
	}
	if len(s.EDP) == 0 {
		return nil, eris.Wrap(ErrShapeMismatch, "empty series")
	}

	xs := make([]float64, 0, len(s.EDP)+1)
	ys := make([]float64, 0, len(s.Loss)+1)
	xs = append(xs, 0)
	ys = append(ys, 0)
	xs = append(xs, s.EDP...)
	for _, l := range s.Loss {
		if l < 0 {
			l = 0
		}
		ys = append(ys, l*factor)
	}
	return interp.Fit(xs, ys)
}

// splitLegacyName decomposes a legacy loss column name such as
// "E_NS_PFA" into its EDP suffix ("PFA") and component type ("NS").
func splitLegacyName(name string) (suffix, compType string, err error) {
	last := strings.LastIndex(name, "_")
	if last < 2 || last == len(name)-1 {
		return "", "", eris.Wrapf(ErrSource, "malformed loss column name %q", name)
	}
	compType = name[2:last]
	if compType == "" {
		return "", "", eris.Wrapf(ErrSource, "malformed loss column name %q", name)
	}
	if len(name) < 3 {
		return "", "", eris.Wrapf(ErrSource, "malformed loss column name %q", name)
	}
	suffix = name[len(name)-3:]
	return suffix, compType, nil
}

func (t *Table) put(group, param string, direction, story int, c *interp.Curve) {
	params, ok := t.Groups[group]
	if !ok {
		params = make(map[string]map[int]map[int]*interp.Curve)
		t.Groups[group] = params
	}
	dirs, ok := params[param]
	if !ok {
		dirs = make(map[int]map[int]*interp.Curve)
		params[param] = dirs
	}
	stories, ok := dirs[direction]
	if !ok {
		stories = make(map[int]*interp.Curve)
		dirs[direction] = stories
	}
	stories[story] = c
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
