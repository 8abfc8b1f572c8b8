package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/bountyboard/internal/models"
)

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, "%logo%", likePattern("logo"))
	assert.Equal(t, `%100\% done%`, likePattern("100% done"))
	assert.Equal(t, `%snake\_case%`, likePattern("snake_case"))
	assert.Equal(t, `%C:\\path%`, likePattern(`C:\path`))
}

func TestListBountiesQuerySearchesLiterally(t *testing.T) {
	query, args := listBountiesQuery(models.BountyFilter{
		Status: models.BountyOpen,
		Query:  "50%_off",
		Limit:  20,
		Offset: 40,
	})
	assert.Contains(t, query, `WHERE status = $1 AND (title ILIKE $2 ESCAPE '\' OR description ILIKE $2 ESCAPE '\')`)
	assert.Contains(t, query, "LIMIT $3 OFFSET $4")
	require.Len(t, args, 4)
	assert.Equal(t, `%50\%\_off%`, args[1])
	assert.Equal(t, 20, args[2])
	assert.Equal(t, 40, args[3])
}

func TestListBountiesQueryWithoutFilters(t *testing.T) {
	query, args := listBountiesQuery(models.BountyFilter{Limit: 5})
	assert.NotContains(t, query, "WHERE")
	assert.Equal(t, []any{5, 0}, args)
}
