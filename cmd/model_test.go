package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicentre-risk/slf-cli/internal/config"
)

func newFlagCmd(mf *modelFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addModelFlags(cmd, mf)
	return cmd
}

func TestResolveFlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	c := &config.Config{Model: config.ModelConfig{
		File:             "from-config.json",
		Stories:          5,
		ReplacementCost:  500,
		ThreeDimensional: true,
	}}

	var mf modelFlags
	cmd := newFlagCmd(&mf)
	require.NoError(t, cmd.ParseFlags([]string{
		"--file", "override.json",
		"--stories", "3",
		"--replacement-cost", "1000",
		"--2d",
		"--normalize",
	}))

	file, opts, err := mf.resolve(cmd, c)
	require.NoError(t, err)
	assert.Equal(t, "override.json", file)
	assert.Equal(t, 3, opts.StoryCount)
	assert.InDelta(t, 1000, opts.ReplacementCost, 1e-9)
	assert.False(t, opts.ThreeDimensional)
	assert.True(t, opts.Normalize)
}

func TestResolveConfigDefaults(t *testing.T) {
	t.Parallel()

	c := &config.Config{Model: config.ModelConfig{
		File:             "from-config.json",
		Stories:          5,
		ReplacementCost:  500,
		ThreeDimensional: true,
		Normalize:        true,
	}}

	var mf modelFlags
	cmd := newFlagCmd(&mf)
	require.NoError(t, cmd.ParseFlags(nil))

	file, opts, err := mf.resolve(cmd, c)
	require.NoError(t, err)
	assert.Equal(t, "from-config.json", file)
	assert.Equal(t, 5, opts.StoryCount)
	assert.InDelta(t, 500, opts.ReplacementCost, 1e-9)
	assert.True(t, opts.ThreeDimensional)
	assert.True(t, opts.Normalize)
}

func TestResolveRequiresFile(t *testing.T) {
	t.Parallel()

	var mf modelFlags
	cmd := newFlagCmd(&mf)
	require.NoError(t, cmd.ParseFlags(nil))

	_, _, err := mf.resolve(cmd, &config.Config{})
	assert.Error(t, err)
}
