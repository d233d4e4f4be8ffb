package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/epicentre-risk/slf-cli/internal/config"
	"github.com/epicentre-risk/slf-cli/internal/slf"
)

// modelFlags are the per-command building-model inputs. Unset flags
// fall back to config values.
type modelFlags struct {
	file      string
	stories   int
	replCost  float64
	twoD      bool
	normalize bool
}

func addModelFlags(cmd *cobra.Command, mf *modelFlags) {
	cmd.Flags().StringVar(&mf.file, "file", "", "SLF data file (.xlsx legacy, .json/.yaml structured)")
	cmd.Flags().IntVar(&mf.stories, "stories", 0, "number of stories")
	cmd.Flags().Float64Var(&mf.replCost, "replacement-cost", 0, "building replacement cost")
	cmd.Flags().BoolVar(&mf.twoD, "2d", false, "model a single response direction (excludes second-direction component costs)")
	cmd.Flags().BoolVar(&mf.normalize, "normalize", false, "normalize curves by the replacement cost")
}

// resolve merges flags over config defaults into loader/builder inputs.
func (mf *modelFlags) resolve(cmd *cobra.Command, c *config.Config) (string, slf.Options, error) {
	file := mf.file
	if file == "" {
		file = c.Model.File
	}
	if file == "" {
		return "", slf.Options{}, eris.New("no SLF data file given (--file or model.file in config)")
	}

	stories := mf.stories
	if stories == 0 {
		stories = c.Model.Stories
	}

	opts := slf.Options{
		StoryCount:       stories,
		ReplacementCost:  mf.replCost,
		ThreeDimensional: c.Model.ThreeDimensional,
		Normalize:        mf.normalize || c.Model.Normalize,
	}
	if opts.ReplacementCost == 0 {
		opts.ReplacementCost = c.Model.ReplacementCost
	}
	if cmd.Flags().Changed("2d") {
		opts.ThreeDimensional = !mf.twoD
	}
	return file, opts, nil
}

// loadModel runs the two-stage transformation: load the raw table in
// whichever variant the file encodes, then build the curve table.
func loadModel(cmd *cobra.Command, c *config.Config, mf *modelFlags) (*slf.Table, error) {
	file, opts, err := mf.resolve(cmd, c)
	if err != nil {
		return nil, err
	}

	raw, err := slf.Load(file, opts.StoryCount)
	if err != nil {
		return nil, err
	}
	return slf.Build(raw, opts)
}
