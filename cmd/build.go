package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/epicentre-risk/slf-cli/internal/slf"
)

var (
	buildFlags modelFlags
	buildOut   string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the loss curve table from an SLF data file",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := loadModel(cmd, cfg, &buildFlags)
		if err != nil {
			return err
		}

		zap.L().Info("build complete", zap.Int("curves", table.Leaves()))

		if buildOut == "" {
			return nil
		}
		data, err := json.MarshalIndent(exportTable(table), "", "  ")
		if err != nil {
			return eris.Wrap(err, "encode curve table")
		}
		if err := os.WriteFile(buildOut, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", buildOut)
		}
		zap.L().Info("wrote curve table", zap.String("path", buildOut))
		return nil
	},
}

// exportSeries is the serialized form of one curve: its fitted knots.
type exportSeries struct {
	EDP  []float64 `json:"edp"`
	Loss []float64 `json:"loss"`
}

type exportedTable struct {
	Groups map[string]map[string]map[string]map[string]exportSeries `json:"groups,omitempty"`
	Flat   map[string]exportSeries                                  `json:"flat,omitempty"`
}

func exportTable(t *slf.Table) exportedTable {
	out := exportedTable{}
	if t.Groups != nil {
		out.Groups = make(map[string]map[string]map[string]map[string]exportSeries, len(t.Groups))
		for g, params := range t.Groups {
			gp := make(map[string]map[string]map[string]exportSeries, len(params))
			for k, dirs := range params {
				dp := make(map[string]map[string]exportSeries, len(dirs))
				for d, stories := range dirs {
					sp := make(map[string]exportSeries, len(stories))
					for i, c := range stories {
						xs, ys := c.Points()
						sp[strconv.Itoa(i)] = exportSeries{EDP: xs, Loss: ys}
					}
					dp[strconv.Itoa(d)] = sp
				}
				gp[k] = dp
			}
			out.Groups[g] = gp
		}
	}
	if t.Flat != nil {
		out.Flat = make(map[string]exportSeries, len(t.Flat))
		for k, c := range t.Flat {
			xs, ys := c.Points()
			out.Flat[k] = exportSeries{EDP: xs, Loss: ys}
		}
	}
	return out
}

func init() {
	addModelFlags(buildCmd, &buildFlags)
	buildCmd.Flags().StringVar(&buildOut, "out", "", "write the built curves (as knot series) to this JSON file")
	rootCmd.AddCommand(buildCmd)
}
