package market_test

import (
	"testing"

	"github.com/jrsteele09/fingreat/market"
	"github.com/stretchr/testify/require"
)

func TestMergeAdoptsFreshListWhenEmpty(t *testing.T) {
	out := market.Merge(nil, []market.Stock{
		{Symbol: "AAA", Price: 1},
		{Symbol: "BBB", Price: 2},
	})
	require.Len(t, out, 2)
	require.Equal(t, "AAA", out[0].Symbol)
	require.Equal(t, 2.0, out[1].Price)
}

func TestMergeDropsDuplicateSymbols(t *testing.T) {
	fresh := []market.Stock{
		{Symbol: "AAA", Price: 1},
		{Symbol: "BBB", Price: 2},
		{Symbol: "AAA", Price: 9},
	}

	out := market.Merge(nil, fresh)
	require.Len(t, out, 2)
	require.Equal(t, 1.0, out[0].Price)

	out = market.Merge([]*market.Stock{{Symbol: "BBB", Price: 2}}, fresh)
	require.Len(t, out, 2)
	require.Equal(t, "BBB", out[0].Symbol)
	require.Equal(t, "AAA", out[1].Symbol)
	require.Equal(t, 1.0, out[1].Price)
}

func TestMergePreservesIdentity(t *testing.T) {
	aaa := &market.Stock{Symbol: "AAA", Name: "Alpha", Price: 1, Change: 1, ChangePercent: 1}
	bbb := &market.Stock{Symbol: "BBB", Name: "Beta", Price: 5, Change: 0, ChangePercent: 0}
	old := []*market.Stock{aaa, bbb}

	t.Run("unchanged rows keep their pointer", func(t *testing.T) {
		out := market.Merge(old, []market.Stock{
			{Symbol: "AAA", Name: "ignored", Price: 1, Change: 1, ChangePercent: 1},
			{Symbol: "BBB", Price: 5},
		})
		require.Same(t, aaa, out[0])
		require.Same(t, bbb, out[1])
	})

	t.Run("changed rows are new copies", func(t *testing.T) {
		out := market.Merge(old, []market.Stock{
			{Symbol: "AAA", Name: "ignored", Price: 2, Change: 1, ChangePercent: 1},
		})
		require.NotSame(t, aaa, out[0])
		require.Equal(t, 2.0, out[0].Price)
		require.Equal(t, "Alpha", out[0].Name)
		require.Equal(t, 1.0, aaa.Price, "old entry must not be mutated")
	})

	t.Run("missing rows are kept", func(t *testing.T) {
		out := market.Merge(old, []market.Stock{{Symbol: "AAA", Price: 1, Change: 1, ChangePercent: 1}})
		require.Len(t, out, 2)
		require.Same(t, bbb, out[1])
	})

	t.Run("new symbols are appended", func(t *testing.T) {
		out := market.Merge(old, []market.Stock{
			{Symbol: "CCC", Price: 9},
			{Symbol: "AAA", Price: 1, Change: 1, ChangePercent: 1},
		})
		require.Len(t, out, 3)
		require.Same(t, aaa, out[0])
		require.Equal(t, "CCC", out[2].Symbol)
	})
}
