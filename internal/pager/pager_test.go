package pager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaginateCoversEveryItemOnce(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 59, 60, 61, 120, 121, 1000} {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}
		pages := Paginate(items, 60)
		require.Len(t, pages, Count(n, 60))

		var joined []int
		for i, p := range pages {
			require.Equal(t, i+1, p.Number)
			require.Equal(t, len(pages), p.Total)
			joined = append(joined, p.Items...)
		}
		if n == 0 {
			require.Empty(t, joined)
			continue
		}
		require.Equal(t, items, joined)
	}
}

func TestPageLinks(t *testing.T) {
	t.Parallel()

	pages := Paginate([]string{"a", "b", "c", "d", "e"}, 2)
	require.Len(t, pages, 3)

	require.Equal(t, 0, pages[0].Prev())
	require.Equal(t, 2, pages[0].Next())
	require.True(t, pages[0].First())

	require.Equal(t, 1, pages[1].Prev())
	require.Equal(t, 3, pages[1].Next())

	require.Equal(t, 2, pages[2].Prev())
	require.Equal(t, 0, pages[2].Next())
	require.Equal(t, []string{"e"}, pages[2].Items)
}

func TestEmptyOrderingHasOnePage(t *testing.T) {
	t.Parallel()

	pages := Paginate[string](nil, 60)
	require.Len(t, pages, 1)
	require.Empty(t, pages[0].Items)
	require.Equal(t, 0, pages[0].Prev())
	require.Equal(t, 0, pages[0].Next())
}

func TestNonPositivePerPageUsesDefault(t *testing.T) {
	t.Parallel()

	require.Equal(t, 2, Count(DefaultPerPage+1, 0))
	require.Len(t, Paginate(make([]int, 61), -1), 2)
}
