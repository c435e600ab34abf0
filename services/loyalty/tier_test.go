package loyalty

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTierForPoints(t *testing.T) {
	cases := []struct {
		points int64
		want   Tier
	}{
		{0, TierBronze},
		{1, TierBronze},
		{499, TierBronze},
		{500, TierSilver},
		{501, TierSilver},
		{999, TierSilver},
		{1000, TierGold},
		{5000, TierGold},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, TierForPoints(tc.points), "points=%d", tc.points)
	}
}

func TestTierProgress(t *testing.T) {
	cases := []struct {
		points int64
		want   int
	}{
		{0, 0},
		{250, 50},
		{499, 100}, // rounds up, still bronze
		{500, 0},
		{750, 50},
		{1000, 100},
		{9999, 100},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, TierProgress(tc.points), "points=%d", tc.points)
	}
}

func TestTierRankOrdering(t *testing.T) {
	require.Less(t, TierBronze.Rank(), TierSilver.Rank())
	require.Less(t, TierSilver.Rank(), TierGold.Rank())
	require.Equal(t, -1, Tier("platinum").Rank())
}

func TestParseTierDefaultsToBronze(t *testing.T) {
	require.Equal(t, TierBronze, ParseTier(""))
	require.Equal(t, TierBronze, ParseTier("platinum"))
	require.Equal(t, TierGold, ParseTier("gold"))
}
