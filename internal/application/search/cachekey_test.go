package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQueryText(t *testing.T) {
	assert.Equal(t, "disclosure guidance", NormalizeQueryText("  Disclosure \t  GUIDANCE \n"))
	assert.Equal(t, "", NormalizeQueryText("   "))
}

func TestCacheKey_EquivalentRequestsShareKey(t *testing.T) {
	a := Query{Text: "Disclosure  Guidance", Filters: Filters{Topic: " Climate  Finance "}, SortBy: SortRelevance, Page: 1, PageSize: 10, Level: LevelFast}
	b := Query{Text: " disclosure guidance", Filters: Filters{Topic: "Climate Finance"}, SortBy: SortRelevance, Page: 1, PageSize: 10, Level: LevelFast}
	assert.Equal(t, CacheKey(a), CacheKey(b))
}

func TestCacheKey_FilterCaseIsSignificant(t *testing.T) {
	a := Query{Text: "q", Filters: Filters{Topic: "Guidance", Country: "Kenya"}, Level: LevelFast}
	b := Query{Text: "q", Filters: Filters{Topic: "guidance", Country: "Kenya"}, Level: LevelFast}
	c := Query{Text: "q", Filters: Filters{Topic: "Guidance", Country: "KENYA"}, Level: LevelFast}
	assert.NotEqual(t, CacheKey(a), CacheKey(b))
	assert.NotEqual(t, CacheKey(a), CacheKey(c))
}

func TestNormalizeFilterValue(t *testing.T) {
	assert.Equal(t, "Climate Finance", NormalizeFilterValue("  Climate \t Finance "))
	assert.Equal(t, "", NormalizeFilterValue(" "))
}

func TestCacheKey_DistinctRequestsDiffer(t *testing.T) {
	base := Query{Text: "climate", Page: 1, PageSize: 10, Level: LevelFast, SortBy: SortRelevance}

	variants := map[string]Query{}
	v := base
	v.Filters.Topic = "energy"
	variants["topic"] = v
	v = base
	v.Filters.Country = "energy"
	variants["country same value as topic"] = v
	v = base
	v.Filters.Year = 2020
	variants["year"] = v
	v = base
	v.Filters.YearFrom = 2020
	variants["yearFrom"] = v
	v = base
	v.Filters.YearTo = 2020
	variants["yearTo"] = v
	v = base
	v.Page = 2
	variants["page"] = v
	v = base
	v.PageSize = 20
	variants["pageSize"] = v
	v = base
	v.Level = LevelFull
	variants["level"] = v
	v = base
	v.SortBy = SortNewest
	variants["sort"] = v

	seen := map[string]string{CacheKey(base): "base"}
	for name, q := range variants {
		k := CacheKey(q)
		prev, dup := seen[k]
		assert.False(t, dup, "%s collides with %s", name, prev)
		seen[k] = name
	}
}

func TestCacheKey_DelimiterCannotBeInjected(t *testing.T) {
	a := Query{Text: "a", Filters: Filters{Topic: "b\x1fc"}, Level: LevelFast}
	b := Query{Text: "a", Filters: Filters{Topic: "b", Country: "c"}, Level: LevelFast}
	assert.NotEqual(t, CacheKey(a), CacheKey(b))
}
