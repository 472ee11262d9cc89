package knowledge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchExactNameRanksFirst(t *testing.T) {
	c := NewCatalog(nil)

	results, err := c.Search("Root Canal")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "root_canal", results[0].ID)
}

func TestSearchCaseInsensitive(t *testing.T) {
	c := NewCatalog(nil)

	results, err := c.Search("root canal")
	require.NoError(t, err)
	assert.Equal(t, "root_canal", results[0].ID)
}

func TestSearchNearMiss(t *testing.T) {
	c := NewCatalog(nil)

	tests := []struct {
		query  string
		wantID string
	}{
		{"root cannal", "root_canal"},
		{"teeth whitening please", "teeth_whitening"},
		{"how much is a crown", "crown"},
		{"i need a cleaning", "basic_cleaning"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results, err := c.Search(tt.query)
			require.NoError(t, err, "query %q should match", tt.query)

			found := false
			limit := min(3, len(results))
			for _, r := range results[:limit] {
				if r.ID == tt.wantID {
					found = true
					break
				}
			}
			assert.True(t, found, "query %q: want %s in top results, got %+v", tt.query, tt.wantID, results)
		})
	}
}

func TestSearchCategoryLabel(t *testing.T) {
	c := NewCatalog(nil)

	results, err := c.Search("cosmetic")
	require.NoError(t, err)
	assert.Equal(t, CategoryCosmetic, results[0].Category)
}

func TestSearchNonsenseReturnsNoMatchWithSuggestions(t *testing.T) {
	c := NewCatalog(nil)

	_, err := c.Search("quantum flux polisher")
	require.Error(t, err)

	var noMatch *NoMatchError
	require.True(t, errors.As(err, &noMatch))
	assert.Len(t, noMatch.Suggestions, 3)
}

func TestSearchEmptyQuery(t *testing.T) {
	c := NewCatalog(nil)

	_, err := c.Search("   ")
	var noMatch *NoMatchError
	require.True(t, errors.As(err, &noMatch))
}

func TestSearchDeterministic(t *testing.T) {
	c := NewCatalog(nil)

	first, err := c.Search("filling")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.Search("filling")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	require.GreaterOrEqual(t, len(first), 2)
	assert.ElementsMatch(t, []string{"composite_filling", "amalgam_filling"}, []string{first[0].ID, first[1].ID})
}

func TestSearchBatchKeepsOrderAndToleratesMisses(t *testing.T) {
	c := NewCatalog(nil)

	batch := c.SearchBatch([]string{"crown", "zzzzzz", "root canal"})
	require.Len(t, batch, 3)

	assert.Equal(t, "crown", batch[0].Results[0].ID)
	assert.Error(t, batch[1].Err)
	assert.Empty(t, batch[1].Results)
	assert.Equal(t, "root_canal", batch[2].Results[0].ID)
}

func TestSpeakDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{5, "5 minutes"},
		{1, "1 minute"},
		{45, "45 minutes"},
		{60, "1 hour"},
		{90, "1 hour and 30 minutes"},
		{120, "2 hours"},
		{150, "2 hours and 30 minutes"},
		{61, "1 hour and 1 minute"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SpeakDuration(tt.minutes))
	}
}

func TestSpeakPriceRange(t *testing.T) {
	assert.Equal(t, "between 800 and 1200 dollars", SpeakPriceRange(Treatment{PriceMin: 800, PriceMax: 1200}))
	assert.Equal(t, "100 dollars", SpeakPriceRange(Treatment{PriceMin: 100, PriceMax: 100}))
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"canal", "cannal", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "levenshtein(%q, %q)", tt.a, tt.b)
	}
}
