package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CaixiangyangCD/ksx/internal/domain"
)

func TestMatchEntityExact(t *testing.T) {
	t.Parallel()

	m := NewMatcher([]string{
		"<span>[S019] 华为门店（江景店）</span>",
		"[S020] 小米之家",
	})

	res := m.MatchEntity("华为门店")
	require.Equal(t, domain.MatchUnique, res.Outcome)
	require.Equal(t, "<span>[S019] 华为门店（江景店）</span>", res.Entity)
	require.Equal(t, "exact", res.Rule)
}

func TestMatchEntityExactCollision(t *testing.T) {
	t.Parallel()

	// The markup variant and the coded variant of one store clean to the
	// same core, so neither may be picked silently.
	m := NewMatcher([]string{
		"<span>华为门店（滨江）</span>",
		"[S019] 华为门店(滨江)",
	})

	res := m.MatchEntity("华为门店(滨江)")
	require.Equal(t, domain.MatchAmbiguous, res.Outcome)
	require.Equal(t, "exact", res.Rule)
	require.Len(t, res.Candidates, 2)
	require.Empty(t, res.Entity)
}

func TestMatchEntityContains(t *testing.T) {
	t.Parallel()

	m := NewMatcher([]string{"[S030] 永辉超市浦东旗舰店"})

	res := m.MatchEntity("永辉超市浦东")
	require.Equal(t, domain.MatchUnique, res.Outcome)
	require.Equal(t, "contains", res.Rule)
}

func TestMatchEntitySimilarity(t *testing.T) {
	t.Parallel()

	m := NewMatcher([]string{"[S040] 华为授权体验店世纪大道"})

	res := m.MatchEntity("华为授权体验店世纪道")
	require.Equal(t, domain.MatchUnique, res.Outcome)
	require.Equal(t, "similarity", res.Rule)
}

func TestMatchEntityNotFound(t *testing.T) {
	t.Parallel()

	m := NewMatcher([]string{"[S019] 华为门店"})

	res := m.MatchEntity("泉州肯德基")
	require.Equal(t, domain.MatchNotFound, res.Outcome)
	require.Empty(t, res.Entity)
}

func TestMatchEntityAmbiguous(t *testing.T) {
	t.Parallel()

	// Two stored names equally similar to the query, neither exact nor
	// containing.
	m := NewMatcher([]string{"门店甲乙丙一", "门店甲乙丙二"})

	res := m.MatchEntity("门店甲乙丙三")
	require.Equal(t, domain.MatchAmbiguous, res.Outcome)
	require.Len(t, res.Candidates, 2)
}

func TestMatchEntityDeterministic(t *testing.T) {
	t.Parallel()

	names := []string{"bbb门店", "aaa门店", "ccc门店"}
	first := NewMatcher(names).MatchEntity("门店")

	reversed := []string{"ccc门店", "aaa门店", "bbb门店"}
	second := NewMatcher(reversed).MatchEntity("门店")

	require.Equal(t, first, second, "pool order must not change the outcome")
}

func TestMatchEntityEmptyName(t *testing.T) {
	t.Parallel()

	m := NewMatcher([]string{"[S019] 华为门店"})
	res := m.MatchEntity("<span></span>")
	require.Equal(t, domain.MatchNotFound, res.Outcome)
}
