package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-catalog/internal/catalog"
)

func records(t *testing.T, rows ...map[string]any) []*catalog.Record {
	t.Helper()
	recs, dropped := catalog.NormalizeAll(rows)
	require.Zero(t, dropped)
	return recs
}

func TestPersonIndexIsComplete(t *testing.T) {
	t.Parallel()

	recs := records(t,
		map[string]any{"id": "1", "people": []any{"Jane", "Kim"}},
		map[string]any{"id": "2", "people": []any{"Kim"}},
		map[string]any{"id": "3"},
		map[string]any{"id": "4", "people": []any{"Jane"}},
	)
	ix := Build(recs, Person)

	for _, r := range recs {
		for _, p := range r.People {
			require.Contains(t, ix.Records(p), r)
		}
	}
	for _, key := range ix.Keys() {
		for _, r := range ix.Records(key) {
			require.Contains(t, r.People, key, "record %s filed under %s", r.ID, key)
		}
	}
	require.Equal(t, 2, ix.Len())
	require.Equal(t, []string{"1", "4"}, idsOf(ix.Records("Jane")))
	require.Equal(t, []string{"1", "2"}, idsOf(ix.Records("Kim")))
}

func TestEmptyFacetContributesNothing(t *testing.T) {
	t.Parallel()

	recs := records(t,
		map[string]any{"id": "1", "maker": ""},
		map[string]any{"id": "2", "maker": "Acme", "series": "S"},
	)
	set := BuildAll(recs)
	require.Equal(t, []string{"Acme"}, set.Makers.Keys())
	require.Equal(t, []string{"S"}, set.Series.Keys())
	require.Zero(t, set.Tags.Len())
	require.Nil(t, set.Makers.Records(""))
	require.Same(t, set.Makers, set.Get(Maker))
}

func TestKeysSortCaseInsensitively(t *testing.T) {
	t.Parallel()

	recs := records(t,
		map[string]any{"id": "1", "tags": []any{"banana", "Apple"}},
		map[string]any{"id": "2", "tags": []any{"cherry", "apple"}},
	)
	ix := Build(recs, Tag)
	assert.Equal(t, []string{"Apple", "apple", "banana", "cherry"}, ix.Keys())
}

func TestPrimary(t *testing.T) {
	t.Parallel()

	recs := records(t, map[string]any{"id": "1", "tags": []any{"Horror", "Drama"}, "people": []any{"Jane", "Kim"}, "maker": "Acme"})
	assert.Equal(t, "Horror", Primary(recs[0], Tag))
	assert.Equal(t, "Jane", Primary(recs[0], Person))
	assert.Equal(t, "Acme", Primary(recs[0], Maker))
	assert.Equal(t, "", Primary(recs[0], Series))
}

func idsOf(rs []*catalog.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
