package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/epicentre-risk/slf-cli/internal/slf"
)

var (
	queryFlags     modelFlags
	queryGroup     string
	queryParam     string
	queryDirection int
	queryStory     int
	queryAt        []float64
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Evaluate one loss curve at demand values",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := loadModel(cmd, cfg, &queryFlags)
		if err != nil {
			return err
		}

		c, err := table.Curve(queryGroup, queryParam, queryDirection, queryStory)
		if err != nil {
			return err
		}

		for _, d := range queryAt {
			fmt.Printf("%g\t%g\n", d, c.At(d))
		}
		return nil
	},
}

func init() {
	addModelFlags(queryCmd, &queryFlags)
	queryCmd.Flags().StringVar(&queryGroup, "group", slf.GroupNonDirectional, "component group")
	queryCmd.Flags().StringVar(&queryParam, "edp", "", "demand-parameter key (e.g. IDR_S, PFA_NS)")
	queryCmd.Flags().IntVar(&queryDirection, "direction", slf.NonDirectional, "direction (0 for non-directional groups)")
	queryCmd.Flags().IntVar(&queryStory, "story", 0, "story index")
	queryCmd.Flags().Float64SliceVar(&queryAt, "at", nil, "demand values to evaluate")
	queryCmd.MarkFlagRequired("edp")
	queryCmd.MarkFlagRequired("at")
	rootCmd.AddCommand(queryCmd)
}
