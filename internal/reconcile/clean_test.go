package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "华为门店", "华为门店"},
		{"html markup", "<span class='hl'>华为门店</span>", "华为门店"},
		{"code prefix", "[S019] 华为门店", "华为门店"},
		{"fullwidth code prefix", "【S019】华为门店", "华为门店"},
		{"bare code prefix", "S019华为门店", "华为门店"},
		{"trailing qualifier", "华为门店(江景店)", "华为门店"},
		{"fullwidth qualifier", "华为门店（江景店）", "华为门店"},
		{"everything at once", "<span>[S019] 华为门店（江景店）</span>", "华为门店"},
		{"inner whitespace", "华为  门店", "华为门店"},
		{"punctuation", "华为-门店·江景", "华为门店江景"},
		{"empty", "", ""},
		{"only markup", "<br/>", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CleanName(tc.in))
		})
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1.0, similarity("华为门店", "华为门店"))
	require.Equal(t, 1.0, similarity("", ""))
	require.Zero(t, similarity("abc", "xyz"))

	// Shared majority of runes scores above the matching floor.
	s := similarity("华为门店江景", "华为门店滨江")
	require.Greater(t, s, 0.6)
	require.Less(t, s, 1.0)

	// Symmetric.
	require.Equal(t, similarity("abcd", "abxd"), similarity("abxd", "abcd"))
}
