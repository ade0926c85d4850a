package ordering

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-catalog/internal/catalog"
)

func rec(t *testing.T, fields map[string]any) *catalog.Record {
	t.Helper()
	r, ok := catalog.Normalize(fields)
	require.True(t, ok)
	return &r
}

func ids(records []*catalog.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestNewestPutsUndatedLastInInputOrder(t *testing.T) {
	t.Parallel()

	records := []*catalog.Record{
		rec(t, map[string]any{"id": "u1"}),
		rec(t, map[string]any{"id": "old", "release_date": "2020-01-01"}),
		rec(t, map[string]any{"id": "u2", "release_date": "garbage"}),
		rec(t, map[string]any{"id": "new", "release_date": "2024-06-01"}),
		rec(t, map[string]any{"id": "new-twin", "release_date": "2024-06-01"}),
	}
	got := Newest(records)
	require.Equal(t, []string{"new", "new-twin", "old", "u1", "u2"}, ids(got))
	require.Equal(t, "u1", records[0].ID, "input must not be reordered")
}

func TestByRankMissingLast(t *testing.T) {
	t.Parallel()

	newest := Newest([]*catalog.Record{
		rec(t, map[string]any{"id": "a", "release_date": "2024-03-01"}),
		rec(t, map[string]any{"id": "b", "release_date": "2024-02-01", "rank": 2}),
		rec(t, map[string]any{"id": "c", "release_date": "2024-01-01", "rank": 1}),
	})
	ranking := ByRank(newest)
	require.False(t, ranking.Synthetic)
	require.Equal(t, []string{"c", "b", "a"}, ids(ranking.Records))
}

func TestByRankFallsBackToNewest(t *testing.T) {
	t.Parallel()

	newest := Newest([]*catalog.Record{
		rec(t, map[string]any{"id": "a", "release_date": "2023-01-01"}),
		rec(t, map[string]any{"id": "b", "release_date": "2024-01-01"}),
		rec(t, map[string]any{"id": "c"}),
	})
	ranking := ByRank(newest)
	require.True(t, ranking.Synthetic)
	require.Equal(t, ids(newest), ids(ranking.Records))
}

func TestByRating(t *testing.T) {
	t.Parallel()

	newest := Newest([]*catalog.Record{
		rec(t, map[string]any{"id": "unrated-new", "release_date": "2025-01-01", "review_count": 999}),
		rec(t, map[string]any{"id": "low", "review_average": 2.0, "review_count": 100}),
		rec(t, map[string]any{"id": "high-few", "review_average": 4.5, "review_count": 3}),
		rec(t, map[string]any{"id": "high-many", "review_average": 4.5, "review_count": 30}),
		rec(t, map[string]any{"id": "high-many-newer", "review_average": 4.5, "review_count": 30, "release_date": "2022-01-01"}),
		rec(t, map[string]any{"id": "unrated-old", "release_date": "2001-01-01"}),
	})
	got := ByRating(newest)
	require.Equal(t, []string{
		"high-many-newer", "high-many", "high-few", "low", "unrated-new", "unrated-old",
	}, ids(got))
}

func TestTiesKeepUndatedAfterPre1970(t *testing.T) {
	t.Parallel()

	undatedFirst := []*catalog.Record{
		rec(t, map[string]any{"id": "undated", "review_average": 4.0, "sample_images_small": []any{"https://i/u"}}),
		rec(t, map[string]any{"id": "1965", "release_date": "1965-05-01", "review_average": 4.0, "sample_images_small": []any{"https://i/o"}}),
	}
	require.Equal(t, []string{"1965", "undated"}, ids(ByRating(undatedFirst)))
	require.Equal(t, []string{"1965", "undated"}, ids(ByImageCount(undatedFirst)))
}

func TestMediaOrderings(t *testing.T) {
	t.Parallel()

	newest := Newest([]*catalog.Record{
		rec(t, map[string]any{"id": "v", "release_date": "2024-01-03", "sample_video": "https://v/1.mp4"}),
		rec(t, map[string]any{"id": "i2", "release_date": "2024-01-02", "sample_images_small": []any{"https://i/1", "https://i/2"}}),
		rec(t, map[string]any{"id": "i1-new", "release_date": "2024-01-04", "sample_images_large": []any{"https://i/3"}}),
		rec(t, map[string]any{"id": "i1-old", "release_date": "2024-01-01", "sample_images_large": []any{"https://i/4"}}),
	})
	require.Equal(t, []string{"v"}, ids(WithVideo(newest)))
	require.Equal(t, []string{"i2", "i1-new", "i1-old"}, ids(ByImageCount(newest)))
}

func TestBuild(t *testing.T) {
	t.Parallel()

	set := Build([]*catalog.Record{
		rec(t, map[string]any{"id": "a", "release_date": "2020-01-01"}),
		rec(t, map[string]any{"id": "b", "release_date": "2021-01-01"}),
	})
	require.Equal(t, []string{"b", "a"}, ids(set.Latest))
	require.True(t, set.Rank.Synthetic)
	require.Equal(t, []string{"b", "a"}, ids(set.Reviews))
	require.Empty(t, set.Movies)
	require.Empty(t, set.Images)
}
